package pricing

import "fmt"

// ──────────────────────────────────────────────────────────────────────────────
// Fee layer — wraps the LMSR functions with a flat percentage trading fee.
// Purely arithmetic, no side effects.
// ──────────────────────────────────────────────────────────────────────────────

// BuyQuote is the fee-adjusted result of pricing a buy.
type BuyQuote struct {
	Shares          float64 // shares received for NetAmount
	FeeAmount       float64 // fee deducted up front
	NetAmount       float64 // amount that actually buys shares
	EffectiveAmount float64 // the gross amount the trader submitted
	AvgPrice        float64 // NetAmount / Shares
}

// SellQuote is the fee-adjusted result of pricing a sell.
type SellQuote struct {
	GrossValue float64 // cash released by the AMM before fee
	FeeAmount  float64 // fee deducted from the gross
	NetValue   float64 // cash the trader receives
	AvgPrice   float64 // GrossValue / Shares sold
}

// QuoteBuy applies the fee to the submitted amount, then prices the net amount
// through SharesForValue.  feeRate is a fraction, e.g. 0.01 for 1%.
func QuoteBuy(amount, qy, qn, b float64, side Side, feeRate float64) (*BuyQuote, error) {
	if feeRate < 0 || feeRate >= 1 {
		return nil, fmt.Errorf("%w: fee rate %g must be in [0,1)", ErrDomain, feeRate)
	}
	fee := amount * feeRate
	net := amount - fee

	shares, err := SharesForValue(net, qy, qn, b, side)
	if err != nil {
		return nil, err
	}
	avg, err := PricePerShare(net, shares)
	if err != nil {
		return nil, err
	}
	return &BuyQuote{
		Shares:          shares,
		FeeAmount:       fee,
		NetAmount:       net,
		EffectiveAmount: amount,
		AvgPrice:        avg,
	}, nil
}

// QuoteSell prices the shares through ValueForShares, then deducts the fee
// from the gross proceeds.
func QuoteSell(shares, qy, qn, b float64, side Side, feeRate float64) (*SellQuote, error) {
	if feeRate < 0 || feeRate >= 1 {
		return nil, fmt.Errorf("%w: fee rate %g must be in [0,1)", ErrDomain, feeRate)
	}
	gross, err := ValueForShares(shares, qy, qn, b, side)
	if err != nil {
		return nil, err
	}
	avg, err := PricePerShare(gross, shares)
	if err != nil {
		return nil, err
	}
	fee := gross * feeRate
	return &SellQuote{
		GrossValue: gross,
		FeeAmount:  fee,
		NetValue:   gross - fee,
		AvgPrice:   avg,
	}, nil
}
