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
)

// WalletRepository handles all database operations for Wallets, Transactions,
// and the platform ledger.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a fresh wallet for a new user.
func (r *WalletRepository) Create(ctx context.Context, tx *sqlx.Tx, w *domain.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES (:id, :user_id, :balance, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, w); err != nil {
		return fmt.Errorf("wallet_repo.Create: %w", err)
	}
	return nil
}

// GetByUserID fetches the wallet belonging to a specific user.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetByUserID: %w", err)
	}
	return &w, nil
}

// GetForUpdate fetches the wallet inside tx holding its row lock, so the
// caller can read balance_before, mutate, and log in one atomic unit.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := tx.GetContext(ctx, &w, `SELECT * FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetForUpdate: %w", err)
	}
	return &w, nil
}

// DeductBalance subtracts amount from a user's balance inside a transaction.
// Uses FOR UPDATE to prevent races; returns ErrInsufficientBalance when the
// balance would go negative.
func (r *WalletRepository) DeductBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	// Lock the row and check the balance atomically
	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance,
		`SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`,
		userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrWalletNotFound
		}
		return fmt.Errorf("wallet_repo.DeductBalance lock: %w", err)
	}

	if balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance - $1, updated_at = now() WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("wallet_repo.DeductBalance update: %w", err)
	}
	return nil
}

// AddBalance credits amount to a user's wallet inside a transaction.
func (r *WalletRepository) AddBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + $1, updated_at = now() WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("wallet_repo.AddBalance: %w", err)
	}
	return nil
}

// LogTransaction inserts an audit record into wallet_transactions inside a transaction.
func (r *WalletRepository) LogTransaction(ctx context.Context, tx *sqlx.Tx, txn *domain.Transaction) error {
	query := `
		INSERT INTO wallet_transactions
			(id, wallet_id, type, amount, balance_before, balance_after, ref_id, description, created_at)
		VALUES
			(:id, :wallet_id, :type, :amount, :balance_before, :balance_after, :ref_id, :description, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("wallet_repo.LogTransaction: %w", err)
	}
	return nil
}

// GetTransactions returns paginated transaction history for a user's wallet.
func (r *WalletRepository) GetTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT wt.*
		FROM wallet_transactions wt
		JOIN wallets w ON w.id = wt.wallet_id
		WHERE w.user_id = $1
		ORDER BY wt.created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.GetTransactions: %w", err)
	}
	return txns, nil
}

// ── Platform ledger ──────────────────────────────────────────────────────────
// The platform has no wallet row.  Its money is the append-only
// platform_ledger: trade fees, captured pools, and bond rounding dust.

// AppendLedger inserts a platform ledger entry inside a transaction.
func (r *WalletRepository) AppendLedger(ctx context.Context, tx *sqlx.Tx, e *domain.PlatformLedgerEntry) error {
	query := `
		INSERT INTO platform_ledger (id, entry_type, amount, market_id, description, created_at)
		VALUES (:id, :entry_type, :amount, :market_id, :description, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("wallet_repo.AppendLedger: %w", err)
	}
	return nil
}

// LedgerBalance returns the platform's net position (sum of all entries).
func (r *WalletRepository) LedgerBalance(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(amount), 0) FROM platform_ledger`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_repo.LedgerBalance: %w", err)
	}
	return total, nil
}

// GetLedgerEntries returns recent platform ledger entries, newest first.
// entryType="" means all types.
func (r *WalletRepository) GetLedgerEntries(ctx context.Context, entryType string, limit, offset int) ([]*domain.PlatformLedgerEntry, error) {
	var entries []*domain.PlatformLedgerEntry
	var err error
	if entryType != "" {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM platform_ledger
			WHERE entry_type = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`,
			entryType, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM platform_ledger
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.GetLedgerEntries: %w", err)
	}
	return entries, nil
}

// ── Reconciliation helpers ───────────────────────────────────────────────────

// TotalUserBalance sums every user wallet balance.
func (r *WalletRepository) TotalUserBalance(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(balance), 0) FROM wallets`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_repo.TotalUserBalance: %w", err)
	}
	return total, nil
}

// TotalLiquidityPools sums the pool column of every non-terminal market.
func (r *WalletRepository) TotalLiquidityPools(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(liquidity_pool), 0) FROM markets
		WHERE status NOT IN ('settled','cancelled')`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_repo.TotalLiquidityPools: %w", err)
	}
	return total, nil
}

// TotalActiveBonds sums every bond still held in escrow.
func (r *WalletRepository) TotalActiveBonds(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(s.total, 0) + COALESCE(c.total, 0) + COALESCE(v.total, 0)
		FROM (SELECT SUM(bond_amount) AS total FROM settlement_bonds WHERE status = 'active') s,
		     (SELECT SUM(bond_amount) AS total FROM contest_bonds   WHERE status = 'active') c,
		     (SELECT SUM(bond_amount) AS total FROM settlement_votes WHERE status = 'active') v`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_repo.TotalActiveBonds: %w", err)
	}
	return total, nil
}

// AdminAdjustBalance applies a signed decimal adjustment to a user's balance
// directly (positive = credit, negative = debit).  Used only by back-office.
func (r *WalletRepository) AdminAdjustBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + $1, updated_at = now() WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("wallet_repo.AdminAdjustBalance: %w", err)
	}
	return nil
}

// LogTransactionDirect writes an audit record outside of a transaction (e.g.
// admin adjustments that run without an explicit tx).
func (r *WalletRepository) LogTransactionDirect(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO wallet_transactions
			(id, wallet_id, type, amount, balance_before, balance_after, ref_id, description, created_at)
		VALUES
			(:id, :wallet_id, :type, :amount, :balance_before, :balance_after, :ref_id, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("wallet_repo.LogTransactionDirect: %w", err)
	}
	return nil
}
