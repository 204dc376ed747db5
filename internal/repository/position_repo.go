package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/pricing"
)

// PositionRepository handles database operations for user positions.
// Positions are one row per (user, market, side) and are zeroed rather than
// deleted so the cost-basis trail survives settlement.
type PositionRepository struct {
	db *sqlx.DB
}

// NewPositionRepository creates a new PositionRepository.
func NewPositionRepository(db *sqlx.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Get fetches a position without locking.  Returns ErrPositionNotFound when
// the user has never traded that side of the market.
func (r *PositionRepository) Get(ctx context.Context, userID, marketID uuid.UUID, side pricing.Side) (*domain.Position, error) {
	var p domain.Position
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM positions WHERE user_id = $1 AND market_id = $2 AND side = $3`,
		userID, marketID, string(side))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, fmt.Errorf("position_repo.Get: %w", err)
	}
	return &p, nil
}

// GetForUpdate fetches a position inside tx holding its row lock.
func (r *PositionRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, userID, marketID uuid.UUID, side pricing.Side) (*domain.Position, error) {
	var p domain.Position
	err := tx.GetContext(ctx, &p,
		`SELECT * FROM positions WHERE user_id = $1 AND market_id = $2 AND side = $3 FOR UPDATE`,
		userID, marketID, string(side))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, fmt.Errorf("position_repo.GetForUpdate: %w", err)
	}
	return &p, nil
}

// Upsert inserts the position or overwrites its mutable columns.  The unique
// index on (user_id, market_id, side) carries the conflict target.
func (r *PositionRepository) Upsert(ctx context.Context, tx *sqlx.Tx, p *domain.Position) error {
	query := `
		INSERT INTO positions
			(id, user_id, market_id, side, shares, amount_invested, avg_price, created_at, updated_at)
		VALUES
			(:id, :user_id, :market_id, :side, :shares, :amount_invested, :avg_price, :created_at, :updated_at)
		ON CONFLICT (user_id, market_id, side) DO UPDATE SET
			shares          = EXCLUDED.shares,
			amount_invested = EXCLUDED.amount_invested,
			avg_price       = EXCLUDED.avg_price,
			updated_at      = now()`
	_, err := tx.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("position_repo.Upsert: %w", err)
	}
	return nil
}

// GetOpenByMarket returns every position on a market that still holds shares.
// Settlement payouts and contest-eligibility checks iterate this set.
func (r *PositionRepository) GetOpenByMarket(ctx context.Context, marketID uuid.UUID) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := r.db.SelectContext(ctx, &positions,
		`SELECT * FROM positions WHERE market_id = $1 AND shares > 0 ORDER BY created_at ASC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("position_repo.GetOpenByMarket: %w", err)
	}
	return positions, nil
}

// GetOpenByMarketTx is GetOpenByMarket inside the caller's transaction, with
// row locks so settlement can zero them without racing a concurrent sell.
func (r *PositionRepository) GetOpenByMarketTx(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := tx.SelectContext(ctx, &positions,
		`SELECT * FROM positions WHERE market_id = $1 AND shares > 0 ORDER BY created_at ASC FOR UPDATE`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("position_repo.GetOpenByMarketTx: %w", err)
	}
	return positions, nil
}

// GetByUser returns all of a user's positions, newest market first.
func (r *PositionRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := r.db.SelectContext(ctx, &positions,
		`SELECT * FROM positions WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("position_repo.GetByUser: %w", err)
	}
	return positions, nil
}

// HasOpenPosition reports whether the user holds shares on either side of
// the market.  Used for the contest-eligibility check.
func (r *PositionRepository) HasOpenPosition(ctx context.Context, userID, marketID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM positions WHERE user_id = $1 AND market_id = $2 AND shares > 0)`,
		userID, marketID)
	if err != nil {
		return false, fmt.Errorf("position_repo.HasOpenPosition: %w", err)
	}
	return exists, nil
}

// Zero empties a position after its payout or refund is booked.  The row
// stays behind as the audit record of what was held; avg_price keeps the
// entry price the holder actually paid.
func (r *PositionRepository) Zero(ctx context.Context, tx *sqlx.Tx, positionID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE positions
		SET shares = 0, amount_invested = 0, updated_at = now()
		WHERE id = $1`,
		positionID)
	if err != nil {
		return fmt.Errorf("position_repo.Zero: %w", err)
	}
	return nil
}

// TotalInvested sums live cost basis across a market, used by the
// reconciliation report.
func (r *PositionRepository) TotalInvested(ctx context.Context, marketID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(amount_invested), 0) FROM positions WHERE market_id = $1`,
		marketID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("position_repo.TotalInvested: %w", err)
	}
	return total, nil
}
