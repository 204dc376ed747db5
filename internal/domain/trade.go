package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/pricing"
)

// ──────────────────────────────────────────────────────────────────────────────
// TradeRequest / SellRequest — value objects used by TradeService
// ──────────────────────────────────────────────────────────────────────────────

// TradeRequest carries the validated inputs for buying shares.
// ExpectedPrice is the per-share price the caller saw when quoting; the trade
// is rejected if the realized average price deviates beyond the configured
// slippage tolerance.
type TradeRequest struct {
	UserID        uuid.UUID
	MarketID      uuid.UUID
	Side          pricing.Side
	Amount        decimal.Decimal // gross currency units submitted
	ExpectedPrice decimal.Decimal // 0–1 per share
}

// SellRequest carries the validated inputs for selling shares back to the AMM.
type SellRequest struct {
	UserID        uuid.UUID
	MarketID      uuid.UUID
	Side          pricing.Side
	Shares        decimal.Decimal
	ExpectedPrice decimal.Decimal
}

// ──────────────────────────────────────────────────────────────────────────────
// Results
// ──────────────────────────────────────────────────────────────────────────────

// TradeResult reports a committed buy.
type TradeResult struct {
	MarketID      uuid.UUID       `json:"market_id"`
	Side          pricing.Side    `json:"side"`
	Shares        decimal.Decimal `json:"shares"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	FeeAmount     decimal.Decimal `json:"fee_amount"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	NewYesPrice   float64         `json:"new_yes_price"`
	NewNoPrice    float64         `json:"new_no_price"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

// SellResult reports a committed sell.
type SellResult struct {
	MarketID    uuid.UUID       `json:"market_id"`
	Side        pricing.Side    `json:"side"`
	Shares      decimal.Decimal `json:"shares"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	GrossValue  decimal.Decimal `json:"gross_value"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	NetValue    decimal.Decimal `json:"net_value"`
	NewYesPrice float64         `json:"new_yes_price"`
	NewNoPrice  float64         `json:"new_no_price"`
	ExecutedAt  time.Time       `json:"executed_at"`
}
