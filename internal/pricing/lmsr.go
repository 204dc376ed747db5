// Package pricing implements the Logarithmic Market Scoring Rule (LMSR) used
// to price YES/NO shares continuously from outstanding issuance, plus the flat
// trading-fee layer applied around it.
//
// All functions are pure and stateless.  Arithmetic is IEEE-754 float64 with a
// log-sum-exp formulation so e^(q/b) never overflows for large positions; the
// service layer converts to/from decimal at its boundary.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

// Side selects which half of the binary market a computation refers to.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// IsValid returns true for the two recognised sides.
func (s Side) IsValid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// ln2 is used to derive the liquidity parameter from an initial subsidy.
var ln2 = math.Log(2)

// Numeric failure sentinels.  Wrapped into domain errors by callers.
var (
	// ErrDomain is returned when a formula's argument leaves its domain
	// (log of a non-positive number, selling more shares than outstanding).
	ErrDomain = errors.New("pricing: argument outside function domain")

	// ErrNotFinite is returned when a computation produces NaN or ±Inf.
	ErrNotFinite = errors.New("pricing: result is not finite")
)

// LiquidityToB derives the LMSR liquidity parameter from the cash subsidy the
// market creator posts.  The worst-case AMM loss of an LMSR market is b·ln 2,
// so b = subsidy/ln 2 makes the subsidy exactly cover it.  $100 → b ≈ 144.27.
func LiquidityToB(initialLiquidity float64) (float64, error) {
	if initialLiquidity <= 0 {
		return 0, fmt.Errorf("%w: initial liquidity %g must be positive", ErrDomain, initialLiquidity)
	}
	return initialLiquidity / ln2, nil
}

// logSumExp computes ln(e^x + e^y) without overflowing for large x or y.
func logSumExp(x, y float64) float64 {
	m := math.Max(x, y)
	return m + math.Log(math.Exp(x-m)+math.Exp(y-m))
}

// YesProbability returns e^(qy/b) / (e^(qy/b) + e^(qn/b)), the instantaneous
// price of a YES share.  Always in (0,1) for finite inputs and b > 0.
func YesProbability(qy, qn, b float64) float64 {
	// 1 / (1 + e^((qn-qy)/b)) is the overflow-safe logistic form.
	return 1 / (1 + math.Exp((qn-qy)/b))
}

// NoProbability returns 1 − YesProbability.
func NoProbability(qy, qn, b float64) float64 {
	return 1 / (1 + math.Exp((qy-qn)/b))
}

// Probability returns the instantaneous price of the given side.
func Probability(qy, qn, b float64, side Side) float64 {
	if side == SideYes {
		return YesProbability(qy, qn, b)
	}
	return NoProbability(qy, qn, b)
}

// Cost is the LMSR cost function C(qy,qn) = b·ln(e^(qy/b) + e^(qn/b)).
// The cash a trade moves is the difference in Cost before and after.
func Cost(qy, qn, b float64) float64 {
	return b * logSumExp(qy/b, qn/b)
}

// SharesForValue computes how many shares of side a trader receives for
// spending value currency units, by inverting the cost function in closed
// form.  For YES:
//
//	Δ = b·ln( e^(V/b)·(e^(qy/b)+e^(qn/b)) − e^(qn/b) ) − qy
//
// and symmetrically for NO.  The interior of the log is computed relative to
// max(qy,qn)/b so large positions never overflow.
func SharesForValue(value, qy, qn, b float64, side Side) (float64, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: value %g must be positive", ErrDomain, value)
	}
	if b <= 0 {
		return 0, fmt.Errorf("%w: b %g must be positive", ErrDomain, b)
	}

	qSame, qOther := qy, qn
	if side == SideNo {
		qSame, qOther = qn, qy
	}

	m := math.Max(qy, qn) / b
	// interior = e^(V/b)·(e^(qy/b−m)+e^(qn/b−m)) − e^(qOther/b−m), all scaled by e^m.
	interior := math.Exp(value/b)*(math.Exp(qy/b-m)+math.Exp(qn/b-m)) - math.Exp(qOther/b-m)
	if interior <= 0 {
		return 0, fmt.Errorf("%w: log argument %g is not positive", ErrDomain, interior)
	}

	shares := b*(m+math.Log(interior)) - qSame
	if math.IsNaN(shares) || math.IsInf(shares, 0) {
		return 0, fmt.Errorf("%w: shares for value=%g qy=%g qn=%g b=%g", ErrNotFinite, value, qy, qn, b)
	}
	if shares <= 0 {
		// Numerically impossible for value > 0, but never return garbage.
		return 0, fmt.Errorf("%w: computed non-positive shares %g", ErrDomain, shares)
	}
	return shares, nil
}

// ValueForShares computes the cash released by selling delta shares of side:
// Cost(qy,qn) − Cost with the sold side reduced by delta.  Fails when delta
// exceeds the side's outstanding shares.
func ValueForShares(delta, qy, qn, b float64, side Side) (float64, error) {
	if delta <= 0 {
		return 0, fmt.Errorf("%w: delta %g must be positive", ErrDomain, delta)
	}
	if b <= 0 {
		return 0, fmt.Errorf("%w: b %g must be positive", ErrDomain, b)
	}

	outstanding := qy
	if side == SideNo {
		outstanding = qn
	}
	if delta > outstanding {
		return 0, fmt.Errorf("%w: delta %g exceeds outstanding %g shares", ErrDomain, delta, outstanding)
	}

	var after float64
	if side == SideYes {
		after = Cost(qy-delta, qn, b)
	} else {
		after = Cost(qy, qn-delta, b)
	}
	value := Cost(qy, qn, b) - after
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: value for delta=%g qy=%g qn=%g b=%g", ErrNotFinite, delta, qy, qn, b)
	}
	return value, nil
}

// PricePerShare is the realized average price of a fill: cash over shares.
func PricePerShare(value, shares float64) (float64, error) {
	if shares <= 0 {
		return 0, fmt.Errorf("%w: shares %g must be positive", ErrDomain, shares)
	}
	return value / shares, nil
}
