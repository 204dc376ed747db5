package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/pricing"
)

// Position is a user's holding of one side of one market.  There is exactly
// one row per (user, market, side); it is created on the first trade of that
// side, updated on later buys and sells, and zeroed — never deleted — so the
// audit trail stays intact.
type Position struct {
	ID             uuid.UUID       `json:"id"              db:"id"`
	UserID         uuid.UUID       `json:"user_id"         db:"user_id"`
	MarketID       uuid.UUID       `json:"market_id"       db:"market_id"`
	Side           pricing.Side    `json:"side"            db:"side"`
	Shares         decimal.Decimal `json:"shares"          db:"shares"`
	AvgPrice       decimal.Decimal `json:"avg_price"       db:"avg_price"` // 0–1 per share
	AmountInvested decimal.Decimal `json:"amount_invested" db:"amount_invested"`
	CreatedAt      time.Time       `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"      db:"updated_at"`
}

// ApplyBuy folds a new fill into the position using a share-weighted average
// price:
//
//	new_avg = (old_avg·old_shares + price·new_shares) / (old_shares + new_shares)
func (p *Position) ApplyBuy(shares, price, netAmount decimal.Decimal) {
	total := p.Shares.Add(shares)
	if total.IsPositive() {
		weighted := p.AvgPrice.Mul(p.Shares).Add(price.Mul(shares))
		p.AvgPrice = weighted.Div(total).Round(MoneyPlaces)
	}
	p.Shares = total
	p.AmountInvested = p.AmountInvested.Add(netAmount)
}

// ApplySell reduces the position proportionally: avg_price is untouched and
// amount_invested shrinks by the sold fraction of the holding.
func (p *Position) ApplySell(shares decimal.Decimal) {
	if p.Shares.IsZero() {
		return
	}
	fraction := shares.Div(p.Shares)
	p.AmountInvested = p.AmountInvested.Sub(p.AmountInvested.Mul(fraction)).Round(MoneyPlaces)
	p.Shares = p.Shares.Sub(shares)
	if p.Shares.IsNegative() {
		p.Shares = decimal.Zero
	}
	if p.Shares.IsZero() {
		p.AmountInvested = decimal.Zero
	}
}

// HasShares reports whether the position still holds anything.
func (p *Position) HasShares() bool {
	return p.Shares.IsPositive()
}
