package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntryType enumerates the platform's own money movements.  Every
// movement that is not a direct user-to-user (or user-to-market-pool)
// transfer appends exactly one entry.
type LedgerEntryType string

const (
	LedgerTradeFee         LedgerEntryType = "trade_fee"         // flat % taken on buys/sells
	LedgerLiquidityCapture LedgerEntryType = "liquidity_capture" // pool left over after settlement payouts
	LedgerBondAdjustment   LedgerEntryType = "bond_adjustment"   // rounding dust from bond redistribution
	LedgerManual           LedgerEntryType = "manual"            // back-office adjustment
)

// PlatformLedgerEntry is an append-only record of one platform money movement.
// Rows are never mutated or deleted; the platform's running balance is the sum
// of all amounts (positive = platform gained).
type PlatformLedgerEntry struct {
	ID          uuid.UUID       `json:"id"          db:"id"`
	EntryType   LedgerEntryType `json:"entry_type"  db:"entry_type"`
	Amount      decimal.Decimal `json:"amount"      db:"amount"`
	MarketID    *uuid.UUID      `json:"market_id"   db:"market_id"`
	Description string          `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"created_at"  db:"created_at"`
}
