package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/pricing"
)

// MarketRepository handles all database operations for Markets.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a new market row.
func (r *MarketRepository) Create(ctx context.Context, tx *sqlx.Tx, m *domain.Market) error {
	query := `
		INSERT INTO markets
			(id, creator_id, question, visibility, q_yes, q_no, b, liquidity_pool,
			 total_volume, fees_collected, status, settlement_status, expires_at,
			 created_at, updated_at)
		VALUES
			(:id, :creator_id, :question, :visibility, :q_yes, :q_no, :b, :liquidity_pool,
			 :total_volume, :fees_collected, :status, :settlement_status, :expires_at,
			 :created_at, :updated_at)`
	_, err := tx.NamedExecContext(ctx, query, m)
	if err != nil {
		return fmt.Errorf("market_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a market by its primary key without locking.
func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	return &m, nil
}

// GetByIDForUpdate fetches a market inside tx holding its row lock.  Every
// trade and every settlement transition goes through this single
// serialization point, because q_yes/q_no/liquidity_pool/settlement_status
// are read-then-written and cannot be safely interleaved.
func (r *MarketRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := tx.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByIDForUpdate: %w", err)
	}
	return &m, nil
}

// ApplyTrade updates the traded side's issuance together with the pool,
// volume, and collected fees, inside the caller's transaction.  The caller
// must already hold the row lock via GetByIDForUpdate.
func (r *MarketRepository) ApplyTrade(
	ctx context.Context,
	tx *sqlx.Tx,
	marketID uuid.UUID,
	side pricing.Side,
	sharesDelta, poolDelta, volumeDelta, feeDelta decimal.Decimal,
) error {
	column := "q_yes"
	if side == pricing.SideNo {
		column = "q_no"
	}
	query := fmt.Sprintf(`
		UPDATE markets
		SET %s             = %s + $1,
		    liquidity_pool = liquidity_pool + $2,
		    total_volume   = total_volume + $3,
		    fees_collected = fees_collected + $4,
		    updated_at     = now()
		WHERE id = $5 AND status = 'active'`, column, column)
	res, err := tx.ExecContext(ctx, query, sharesDelta, poolDelta, volumeDelta, feeDelta, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.ApplyTrade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketNotTradeable
	}
	return nil
}

// AdjustPool applies a signed delta to the liquidity pool (settlement payouts
// and refunds draw the pool down).  Caller holds the row lock.
func (r *MarketRepository) AdjustPool(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, delta decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE markets SET liquidity_pool = liquidity_pool + $1, updated_at = now() WHERE id = $2`,
		delta, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.AdjustPool: %w", err)
	}
	return nil
}

// BeginSettlement records the creator's proposed outcome, freezes trading,
// and opens the contest window.  Guarded so it only fires once: the row must
// still have no settlement in progress.
func (r *MarketRepository) BeginSettlement(
	ctx context.Context,
	tx *sqlx.Tx,
	marketID uuid.UUID,
	outcome bool,
	contestDeadline time.Time,
) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE markets
		SET settlement_status = 'pending_contest',
		    creator_outcome   = $1,
		    contest_deadline  = $2,
		    status            = 'suspended',
		    updated_at        = now()
		WHERE id = $3
		  AND settlement_status = ''
		  AND status NOT IN ('settled','cancelled')`,
		outcome, contestDeadline, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.BeginSettlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadySettling
	}
	return nil
}

// MarkContested flips the settlement into the contested state and opens the
// voting window.  Only valid from pending_contest.
func (r *MarketRepository) MarkContested(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, voteDeadline time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE markets
		SET settlement_status = 'contested',
		    vote_deadline     = $1,
		    status            = 'contested',
		    updated_at        = now()
		WHERE id = $2 AND settlement_status = 'pending_contest'`,
		voteDeadline, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.MarkContested: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyContested
	}
	return nil
}

// Finalize writes the terminal settlement state.  outcome is nil for a
// cancellation.  The WHERE clause excludes already-resolved rows, which is
// what makes resolve idempotent under overlapping scheduler runs.
func (r *MarketRepository) Finalize(
	ctx context.Context,
	tx *sqlx.Tx,
	marketID uuid.UUID,
	outcome *bool,
	status domain.MarketStatus,
) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE markets
		SET settlement_status = 'resolved',
		    outcome           = $1,
		    status            = $2,
		    updated_at        = now()
		WHERE id = $3 AND settlement_status <> 'resolved'`,
		outcome, string(status), marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Finalize: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadySettled
	}
	return nil
}

// Suspend freezes trading on an active market (admin action).
func (r *MarketRepository) Suspend(ctx context.Context, marketID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE markets SET status = 'suspended', updated_at = now() WHERE id = $1 AND status = 'active'`,
		marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Suspend: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketNotFound
	}
	return nil
}

// Resume reopens a suspended market that has no settlement in progress.
func (r *MarketRepository) Resume(ctx context.Context, marketID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE markets SET status = 'active', updated_at = now()
		WHERE id = $1 AND status = 'suspended' AND settlement_status = ''`,
		marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Resume: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketNotFound
	}
	return nil
}

// GetDueSettlements returns every market whose settlement window has expired
// and still needs a resolution pass: pending_contest past the contest
// deadline, or contested past the vote deadline.
func (r *MarketRepository) GetDueSettlements(ctx context.Context, now time.Time) ([]*domain.Market, error) {
	var markets []*domain.Market
	err := r.db.SelectContext(ctx, &markets, `
		SELECT * FROM markets
		WHERE (settlement_status = 'pending_contest' AND contest_deadline <= $1)
		   OR (settlement_status = 'contested'       AND vote_deadline    <= $1)
		ORDER BY updated_at ASC`,
		now)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetDueSettlements: %w", err)
	}
	return markets, nil
}

// List returns a paginated slice of markets filtered by optional status.
// status="" returns all statuses.  Returns (markets, totalCount, error).
func (r *MarketRepository) List(ctx context.Context, limit, offset int, status string) ([]*domain.Market, int, error) {
	var markets []*domain.Market
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM markets WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &markets,
			`SELECT * FROM markets WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM markets`); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &markets,
			`SELECT * FROM markets ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	}
	return markets, total, nil
}

// CountByStatus returns market counts grouped by status for the dashboard.
func (r *MarketRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	type row struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM markets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("market_repo.CountByStatus: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.Count
	}
	return out, nil
}
