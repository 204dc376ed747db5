package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oddsmith/peerbet/internal/domain"
)

// BondRepository handles settlement bonds, contest bonds, and votes.
type BondRepository struct {
	db *sqlx.DB
}

// NewBondRepository creates a new BondRepository.
func NewBondRepository(db *sqlx.DB) *BondRepository {
	return &BondRepository{db: db}
}

// CreateSettlementBond records the creator's bond for a proposed outcome.
func (r *BondRepository) CreateSettlementBond(ctx context.Context, tx *sqlx.Tx, b *domain.SettlementBond) error {
	query := `
		INSERT INTO settlement_bonds
			(id, market_id, creator_id, bond_amount, outcome_chosen, status, created_at)
		VALUES
			(:id, :market_id, :creator_id, :bond_amount, :outcome_chosen, :status, :created_at)`
	_, err := tx.NamedExecContext(ctx, query, b)
	if err != nil {
		return fmt.Errorf("bond_repo.CreateSettlementBond: %w", err)
	}
	return nil
}

// GetSettlementBond returns the active settlement bond on a market.
func (r *BondRepository) GetSettlementBond(ctx context.Context, marketID uuid.UUID) (*domain.SettlementBond, error) {
	var b domain.SettlementBond
	err := r.db.GetContext(ctx, &b, `
		SELECT * FROM settlement_bonds
		WHERE market_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1`,
		marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoSettlement
		}
		return nil, fmt.Errorf("bond_repo.GetSettlementBond: %w", err)
	}
	return &b, nil
}

// GetSettlementBondForUpdate is GetSettlementBond under the caller's row lock.
func (r *BondRepository) GetSettlementBondForUpdate(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID) (*domain.SettlementBond, error) {
	var b domain.SettlementBond
	err := tx.GetContext(ctx, &b, `
		SELECT * FROM settlement_bonds
		WHERE market_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE`,
		marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoSettlement
		}
		return nil, fmt.Errorf("bond_repo.GetSettlementBondForUpdate: %w", err)
	}
	return &b, nil
}

// UpdateSettlementBondStatus marks the bond returned or forfeited.
func (r *BondRepository) UpdateSettlementBondStatus(ctx context.Context, tx *sqlx.Tx, bondID uuid.UUID, status domain.BondStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE settlement_bonds SET status = $1, resolved_at = now() WHERE id = $2`,
		string(status), bondID)
	if err != nil {
		return fmt.Errorf("bond_repo.UpdateSettlementBondStatus: %w", err)
	}
	return nil
}

// CreateContestBond records a contestant's bond.  The unique index on
// market_id for active contests turns a double contest into a conflict.
func (r *BondRepository) CreateContestBond(ctx context.Context, tx *sqlx.Tx, b *domain.ContestBond) error {
	query := `
		INSERT INTO contest_bonds
			(id, market_id, contestant_id, bond_amount, status, created_at)
		VALUES
			(:id, :market_id, :contestant_id, :bond_amount, :status, :created_at)`
	_, err := tx.NamedExecContext(ctx, query, b)
	if err != nil {
		if isPgUniqueViolation(err, "contest_bonds_market_active_key") {
			return domain.ErrAlreadyContested
		}
		return fmt.Errorf("bond_repo.CreateContestBond: %w", err)
	}
	return nil
}

// GetContestByID fetches a contest bond by its primary key.
func (r *BondRepository) GetContestByID(ctx context.Context, id uuid.UUID) (*domain.ContestBond, error) {
	var b domain.ContestBond
	err := r.db.GetContext(ctx, &b, `SELECT * FROM contest_bonds WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContestNotFound
		}
		return nil, fmt.Errorf("bond_repo.GetContestByID: %w", err)
	}
	return &b, nil
}

// GetContestBond returns the active contest bond on a market.
func (r *BondRepository) GetContestBond(ctx context.Context, marketID uuid.UUID) (*domain.ContestBond, error) {
	var b domain.ContestBond
	err := r.db.GetContext(ctx, &b, `
		SELECT * FROM contest_bonds
		WHERE market_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1`,
		marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContestNotFound
		}
		return nil, fmt.Errorf("bond_repo.GetContestBond: %w", err)
	}
	return &b, nil
}

// GetContestBondForUpdate is GetContestBond under the caller's row lock.
func (r *BondRepository) GetContestBondForUpdate(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID) (*domain.ContestBond, error) {
	var b domain.ContestBond
	err := tx.GetContext(ctx, &b, `
		SELECT * FROM contest_bonds
		WHERE market_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE`,
		marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContestNotFound
		}
		return nil, fmt.Errorf("bond_repo.GetContestBondForUpdate: %w", err)
	}
	return &b, nil
}

// UpdateContestBondStatus marks the contest bond returned or forfeited.
func (r *BondRepository) UpdateContestBondStatus(ctx context.Context, tx *sqlx.Tx, bondID uuid.UUID, status domain.BondStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE contest_bonds SET status = $1, resolved_at = now() WHERE id = $2`,
		string(status), bondID)
	if err != nil {
		return fmt.Errorf("bond_repo.UpdateContestBondStatus: %w", err)
	}
	return nil
}

// CreateVote records a bonded vote.  The unique index on
// (contest_id, voter_id) rejects duplicate votes.
func (r *BondRepository) CreateVote(ctx context.Context, tx *sqlx.Tx, v *domain.Vote) error {
	query := `
		INSERT INTO settlement_votes
			(id, contest_id, market_id, voter_id, vote_outcome, bond_amount, status, created_at)
		VALUES
			(:id, :contest_id, :market_id, :voter_id, :vote_outcome, :bond_amount, :status, :created_at)`
	_, err := tx.NamedExecContext(ctx, query, v)
	if err != nil {
		if isPgUniqueViolation(err, "settlement_votes_contest_voter_key") {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("bond_repo.CreateVote: %w", err)
	}
	return nil
}

// GetVotesByContest returns every explicit vote cast in a contest.
func (r *BondRepository) GetVotesByContest(ctx context.Context, contestID uuid.UUID) ([]*domain.Vote, error) {
	var votes []*domain.Vote
	err := r.db.SelectContext(ctx, &votes,
		`SELECT * FROM settlement_votes WHERE contest_id = $1 ORDER BY created_at ASC`,
		contestID)
	if err != nil {
		return nil, fmt.Errorf("bond_repo.GetVotesByContest: %w", err)
	}
	return votes, nil
}

// GetVotesByContestTx is GetVotesByContest under the caller's row locks, for
// the resolution pass.
func (r *BondRepository) GetVotesByContestTx(ctx context.Context, tx *sqlx.Tx, contestID uuid.UUID) ([]*domain.Vote, error) {
	var votes []*domain.Vote
	err := tx.SelectContext(ctx, &votes,
		`SELECT * FROM settlement_votes WHERE contest_id = $1 ORDER BY created_at ASC FOR UPDATE`,
		contestID)
	if err != nil {
		return nil, fmt.Errorf("bond_repo.GetVotesByContestTx: %w", err)
	}
	return votes, nil
}

// HasVoted reports whether the voter already cast a vote in the contest.
func (r *BondRepository) HasVoted(ctx context.Context, contestID, voterID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM settlement_votes WHERE contest_id = $1 AND voter_id = $2)`,
		contestID, voterID)
	if err != nil {
		return false, fmt.Errorf("bond_repo.HasVoted: %w", err)
	}
	return exists, nil
}

// RefundVote closes a vote without a verdict (tie or oracle preemption);
// is_correct stays NULL.
func (r *BondRepository) RefundVote(ctx context.Context, tx *sqlx.Tx, voteID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE settlement_votes SET status = 'refunded', resolved_at = now() WHERE id = $1`,
		voteID)
	if err != nil {
		return fmt.Errorf("bond_repo.RefundVote: %w", err)
	}
	return nil
}

// ResolveVote stamps the vote with its outcome after the tally.
func (r *BondRepository) ResolveVote(ctx context.Context, tx *sqlx.Tx, voteID uuid.UUID, isCorrect bool, status domain.VoteStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE settlement_votes SET is_correct = $1, status = $2, resolved_at = now() WHERE id = $3`,
		isCorrect, string(status), voteID)
	if err != nil {
		return fmt.Errorf("bond_repo.ResolveVote: %w", err)
	}
	return nil
}
