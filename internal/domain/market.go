// Package domain defines the core business entities for the peerbet
// prediction-market system: LMSR markets, positions, settlement bonds,
// votes, wallets, and the platform ledger.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/pricing"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	StatusActive    MarketStatus = "active"    // open for trading
	StatusSuspended MarketStatus = "suspended" // trading frozen (settlement pending or admin halt)
	StatusContested MarketStatus = "contested" // settlement outcome is being disputed
	StatusSettled   MarketStatus = "settled"   // outcome fixed, positions paid out
	StatusCancelled MarketStatus = "cancelled" // voided; positions refunded at cost basis
)

// SettlementStatus tracks the dispute-resolution sub-state of a market.
// The empty string means no settlement has been proposed yet.
type SettlementStatus string

const (
	SettlementNone           SettlementStatus = ""
	SettlementPendingContest SettlementStatus = "pending_contest"
	SettlementContested      SettlementStatus = "contested"
	SettlementResolved       SettlementStatus = "resolved"
)

// Visibility controls who may trade a market.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// MoneyPlaces is the scale used for all stored money and share amounts,
// matching the DECIMAL(24,8) columns.
const MoneyPlaces = 8

// DecimalFromFloat converts an LMSR float64 result into the stored decimal
// representation, rounded to the ledger scale.
func DecimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(MoneyPlaces)
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market is the lockable aggregate owning all mutable trading state of one
// YES/NO contract: outstanding issuance (q_yes/q_no), the immutable liquidity
// parameter b, the cash pool backing the AMM, and the settlement sub-state.
// All mutations go through a single serialization point per market id (the
// database row lock); nothing reads-then-writes these fields unguarded.
type Market struct {
	ID               uuid.UUID        `json:"id"                db:"id"`
	CreatorID        uuid.UUID        `json:"creator_id"        db:"creator_id"`
	Question         string           `json:"question"          db:"question"`
	Visibility       Visibility       `json:"visibility"        db:"visibility"`
	QYes             decimal.Decimal  `json:"q_yes"             db:"q_yes"`
	QNo              decimal.Decimal  `json:"q_no"              db:"q_no"`
	B                decimal.Decimal  `json:"b"                 db:"b"` // immutable after creation
	LiquidityPool    decimal.Decimal  `json:"liquidity_pool"    db:"liquidity_pool"`
	TotalVolume      decimal.Decimal  `json:"total_volume"      db:"total_volume"`
	FeesCollected    decimal.Decimal  `json:"fees_collected"    db:"fees_collected"`
	Status           MarketStatus     `json:"status"            db:"status"`
	SettlementStatus SettlementStatus `json:"settlement_status" db:"settlement_status"`
	CreatorOutcome   *bool            `json:"creator_outcome"   db:"creator_outcome"` // proposed settlement outcome
	ContestDeadline  *time.Time       `json:"contest_deadline"  db:"contest_deadline"`
	VoteDeadline     *time.Time       `json:"vote_deadline"     db:"vote_deadline"`
	Outcome          *bool            `json:"outcome"           db:"outcome"` // set only at settlement
	ExpiresAt        time.Time        `json:"expires_at"        db:"expires_at"`
	CreatedAt        time.Time        `json:"created_at"        db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"        db:"updated_at"`
}

// lmsrState returns the float64 view of the market used by the pricing engine.
func (m *Market) lmsrState() (qy, qn, b float64) {
	return m.QYes.InexactFloat64(), m.QNo.InexactFloat64(), m.B.InexactFloat64()
}

// YesProbability returns the instantaneous YES price in (0,1).
func (m *Market) YesProbability() float64 {
	qy, qn, b := m.lmsrState()
	return pricing.YesProbability(qy, qn, b)
}

// NoProbability returns the instantaneous NO price in (0,1).
func (m *Market) NoProbability() float64 {
	qy, qn, b := m.lmsrState()
	return pricing.NoProbability(qy, qn, b)
}

// ProbabilityFor returns the instantaneous price of the given side.
func (m *Market) ProbabilityFor(side pricing.Side) float64 {
	if side == pricing.SideYes {
		return m.YesProbability()
	}
	return m.NoProbability()
}

// OutstandingShares returns the cumulative issuance of one side.
func (m *Market) OutstandingShares(side pricing.Side) decimal.Decimal {
	if side == pricing.SideYes {
		return m.QYes
	}
	return m.QNo
}

// IsTradeable returns true while trades may execute: the market is active and
// its expiry has not passed.
func (m *Market) IsTradeable(now time.Time) bool {
	return m.Status == StatusActive && now.Before(m.ExpiresAt)
}

// IsTerminal returns true once the market can never change state again.
func (m *Market) IsTerminal() bool {
	return m.Status == StatusSettled || m.Status == StatusCancelled
}

// ContestWindowOpen reports whether a settlement proposal can still be contested.
func (m *Market) ContestWindowOpen(now time.Time) bool {
	return m.SettlementStatus == SettlementPendingContest &&
		m.ContestDeadline != nil && now.Before(*m.ContestDeadline)
}

// VoteWindowOpen reports whether votes are still accepted on the open contest.
func (m *Market) VoteWindowOpen(now time.Time) bool {
	return m.SettlementStatus == SettlementContested &&
		m.VoteDeadline != nil && now.Before(*m.VoteDeadline)
}

// TimeLeft returns the duration until deadline, floored at zero.
func TimeLeft(deadline *time.Time, now time.Time) time.Duration {
	if deadline == nil {
		return 0
	}
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateMarketRequest
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarketRequest carries the validated inputs for opening a market.
// InitialLiquidity is the creator's subsidy: it seeds the cash pool and fixes
// the liquidity parameter b for the market's lifetime.
type CreateMarketRequest struct {
	CreatorID        uuid.UUID
	Question         string
	Visibility       Visibility
	InitialLiquidity decimal.Decimal
	ExpiresAt        time.Time
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketOdds — read model for API responses and WS broadcasts
// ──────────────────────────────────────────────────────────────────────────────

// MarketOdds is a derived, read-only snapshot of a market's pricing state.
type MarketOdds struct {
	MarketID       uuid.UUID       `json:"market_id"`
	Status         MarketStatus    `json:"status"`
	YesProbability float64         `json:"yes_probability"`
	NoProbability  float64         `json:"no_probability"`
	QYes           decimal.Decimal `json:"q_yes"`
	QNo            decimal.Decimal `json:"q_no"`
	B              decimal.Decimal `json:"b"`
	LiquidityPool  decimal.Decimal `json:"liquidity_pool"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
	ExpiresAt      time.Time       `json:"expires_at"`
	TimeLeftSec    int64           `json:"time_left_sec"`
}

// ToOdds builds a MarketOdds snapshot at the given time.
func (m *Market) ToOdds(now time.Time) MarketOdds {
	expiry := m.ExpiresAt
	return MarketOdds{
		MarketID:       m.ID,
		Status:         m.Status,
		YesProbability: m.YesProbability(),
		NoProbability:  m.NoProbability(),
		QYes:           m.QYes,
		QNo:            m.QNo,
		B:              m.B,
		LiquidityPool:  m.LiquidityPool,
		TotalVolume:    m.TotalVolume,
		ExpiresAt:      expiry,
		TimeLeftSec:    int64(TimeLeft(&expiry, now).Seconds()),
	}
}
