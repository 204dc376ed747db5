package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// UserRole
// ──────────────────────────────────────────────────────────────────────────────

// UserRole controls access levels in the back-office.
type UserRole string

const (
	RoleUser     UserRole = "user"     // standard trader
	RoleAdmin    UserRole = "admin"    // full back-office access
	RoleFinance  UserRole = "finance"  // platform ledger, reconciliation
	RoleOps      UserRole = "ops"      // operations: market management
	RoleReadOnly UserRole = "readonly" // read-only back-office access
)

// CanAccessBackoffice returns true for all non-standard roles.
func (r UserRole) CanAccessBackoffice() bool {
	return r != RoleUser
}

// IsAdmin returns true only for the full admin role.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

// ──────────────────────────────────────────────────────────────────────────────
// User
// ──────────────────────────────────────────────────────────────────────────────

// User is the domain entity for registered accounts.
type User struct {
	ID           uuid.UUID `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	Username     string    `json:"username"   db:"username"`
	PasswordHash string    `json:"-"          db:"password_hash"` // never serialised
	Role         UserRole  `json:"role"       db:"role"`
	IsActive     bool      `json:"is_active"  db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PublicProfile returns a user view safe to expose via API (no password hash).
type PublicProfile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublicProfile converts a User to its public-safe representation.
func (u *User) ToPublicProfile() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Wallet
// ──────────────────────────────────────────────────────────────────────────────

// Wallet holds a user's cash balance.  Escrowed bonds are moved out of the
// balance entirely (into bond rows), so no separate locked column is needed.
type Wallet struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	UserID    uuid.UUID       `json:"user_id"    db:"user_id"`
	Balance   decimal.Decimal `json:"balance"    db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Transaction
// ──────────────────────────────────────────────────────────────────────────────

// TxType enumerates wallet transaction types for auditing.
type TxType string

const (
	TxDeposit         TxType = "deposit"
	TxTradeBuy        TxType = "trade_buy"        // debit: currency into a market pool
	TxTradeSell       TxType = "trade_sell"       // credit: proceeds from selling shares
	TxBondEscrow      TxType = "bond_escrow"      // debit: settlement/contest/vote bond
	TxBondReturn      TxType = "bond_return"      // credit: bond released
	TxBondReward      TxType = "bond_reward"      // credit: share of forfeited bonds
	TxPayout          TxType = "payout"           // credit: $1 per winning share
	TxRefund          TxType = "refund"           // credit: cost-basis refund on cancel
	TxLiquiditySeed   TxType = "liquidity_seed"   // debit: creator's initial market subsidy
	TxLiquidityReturn TxType = "liquidity_return" // credit: leftover pool on cancel
	TxBonus           TxType = "bonus"            // registration bonus
	TxAdjustment      TxType = "adjustment"       // back-office manual adjustment
)

// Transaction is an immutable audit record for every wallet balance change.
type Transaction struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	WalletID      uuid.UUID       `json:"wallet_id"      db:"wallet_id"`
	Type          TxType          `json:"type"           db:"type"`
	Amount        decimal.Decimal `json:"amount"         db:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"  db:"balance_after"`
	RefID         *uuid.UUID      `json:"ref_id"         db:"ref_id"` // market, bond or vote ID
	Description   string          `json:"description"    db:"description"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
}
