package pricing

import (
	"errors"
	"math"
	"testing"
)

const tol = 1e-9

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// ── Probabilities ─────────────────────────────────────────────────────────────

func TestProbabilities_SumToOne(t *testing.T) {
	cases := []struct {
		name       string
		qy, qn, b  float64
	}{
		{"fresh market", 0, 0, 144.27},
		{"yes-heavy", 500, 100, 144.27},
		{"no-heavy", 10, 900, 144.27},
		{"tiny b", 3, 7, 1.5},
		{"huge positions", 1e6, 9.9e5, 144.27},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yes := YesProbability(tc.qy, tc.qn, tc.b)
			no := NoProbability(tc.qy, tc.qn, tc.b)
			if !almostEqual(yes+no, 1, tol) {
				t.Errorf("yes+no = %g, want 1", yes+no)
			}
			if yes <= 0 || yes >= 1 || no <= 0 || no >= 1 {
				t.Errorf("probabilities out of (0,1): yes=%g no=%g", yes, no)
			}
		})
	}
}

func TestYesProbability_FreshMarketIsHalf(t *testing.T) {
	b, err := LiquidityToB(100)
	if err != nil {
		t.Fatalf("LiquidityToB: %v", err)
	}
	// $100 subsidy → b = 100/ln2 ≈ 144.2695
	if !almostEqual(b, 144.2695, 0.0001) {
		t.Errorf("b = %g, want ~144.2695", b)
	}
	if p := YesProbability(0, 0, b); !almostEqual(p, 0.5, tol) {
		t.Errorf("fresh market yes probability = %g, want 0.5", p)
	}
}

// ── SharesForValue / ValueForShares ──────────────────────────────────────────

func TestSharesForValue_FiftyDollarsAtEvenOdds(t *testing.T) {
	// Scenario: b from $100 liquidity, empty book.  Buying $50 of YES at
	// 50/50 odds should net roughly 50 shares (slightly more than 50·price
	// would suggest is impossible; slightly fewer than 100 because the price
	// moves against the buyer during the fill).
	b, _ := LiquidityToB(100)
	shares, err := SharesForValue(50, 0, 0, b, SideYes)
	if err != nil {
		t.Fatalf("SharesForValue: %v", err)
	}
	if shares < 85 || shares > 95 {
		t.Errorf("shares = %g, want ~90 for $50 at 50/50 with b=%g", shares, b)
	}
	// Average fill price must sit between the pre- and post-trade spot price.
	avg, err := PricePerShare(50, shares)
	if err != nil {
		t.Fatalf("PricePerShare: %v", err)
	}
	before := YesProbability(0, 0, b)
	after := YesProbability(shares, 0, b)
	if avg <= before || avg >= after {
		t.Errorf("avg price %g not between spot %g and %g", avg, before, after)
	}
}

func TestSharesForValue_MatchesCostInverse(t *testing.T) {
	// Δ shares returned for value V must satisfy Cost(q+Δ) − Cost(q) = V.
	b := 144.27
	qy, qn := 120.0, 60.0
	for _, v := range []float64{1, 10, 50, 500} {
		shares, err := SharesForValue(v, qy, qn, b, SideYes)
		if err != nil {
			t.Fatalf("SharesForValue(%g): %v", v, err)
		}
		got := Cost(qy+shares, qn, b) - Cost(qy, qn, b)
		if !almostEqual(got, v, 1e-6) {
			t.Errorf("cost delta for V=%g: got %g", v, got)
		}
	}
}

func TestRoundTrip_BuyThenSell(t *testing.T) {
	b := 144.27
	cases := []struct {
		name      string
		qy, qn, v float64
		side      Side
	}{
		{"yes from empty", 0, 0, 50, SideYes},
		{"no from empty", 0, 0, 50, SideNo},
		{"yes skewed", 300, 80, 25, SideYes},
		{"no skewed", 300, 80, 125, SideNo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shares, err := SharesForValue(tc.v, tc.qy, tc.qn, b, tc.side)
			if err != nil {
				t.Fatalf("SharesForValue: %v", err)
			}
			qy, qn := tc.qy, tc.qn
			if tc.side == SideYes {
				qy += shares
			} else {
				qn += shares
			}
			back, err := ValueForShares(shares, qy, qn, b, tc.side)
			if err != nil {
				t.Fatalf("ValueForShares: %v", err)
			}
			if !almostEqual(back, tc.v, 1e-6) {
				t.Errorf("round trip: put in %g, got back %g", tc.v, back)
			}
		})
	}
}

func TestValueForShares_RejectsOverSell(t *testing.T) {
	_, err := ValueForShares(101, 100, 40, 144.27, SideYes)
	if !errors.Is(err, ErrDomain) {
		t.Errorf("expected ErrDomain selling 101 of 100 shares, got %v", err)
	}
	_, err = ValueForShares(41, 100, 40, 144.27, SideNo)
	if !errors.Is(err, ErrDomain) {
		t.Errorf("expected ErrDomain selling 41 of 40 NO shares, got %v", err)
	}
}

func TestSharesForValue_LargePositionsStayFinite(t *testing.T) {
	// qy/b ≈ 7000 would overflow a naive e^(qy/b); the log-sum-exp form must not.
	b := 144.27
	shares, err := SharesForValue(100, 1e6, 2e5, b, SideYes)
	if err != nil {
		t.Fatalf("SharesForValue with huge qy: %v", err)
	}
	if math.IsNaN(shares) || math.IsInf(shares, 0) {
		t.Fatalf("shares not finite: %g", shares)
	}
	if shares <= 0 {
		t.Errorf("shares = %g, want positive", shares)
	}
}

func TestSharesForValue_InvalidInputs(t *testing.T) {
	if _, err := SharesForValue(0, 0, 0, 144.27, SideYes); !errors.Is(err, ErrDomain) {
		t.Errorf("zero value: want ErrDomain, got %v", err)
	}
	if _, err := SharesForValue(-5, 0, 0, 144.27, SideYes); !errors.Is(err, ErrDomain) {
		t.Errorf("negative value: want ErrDomain, got %v", err)
	}
	if _, err := SharesForValue(10, 0, 0, 0, SideYes); !errors.Is(err, ErrDomain) {
		t.Errorf("zero b: want ErrDomain, got %v", err)
	}
}

func TestPricePerShare_RejectsNonPositiveShares(t *testing.T) {
	if _, err := PricePerShare(10, 0); !errors.Is(err, ErrDomain) {
		t.Errorf("want ErrDomain for zero shares, got %v", err)
	}
}

// ── Side helpers ──────────────────────────────────────────────────────────────

func TestSide_IsValid(t *testing.T) {
	if !SideYes.IsValid() || !SideNo.IsValid() {
		t.Error("YES and NO should be valid sides")
	}
	if Side("MAYBE").IsValid() {
		t.Error("MAYBE should not be a valid side")
	}
	if SideYes.Opposite() != SideNo || SideNo.Opposite() != SideYes {
		t.Error("Opposite() is not an involution")
	}
}
