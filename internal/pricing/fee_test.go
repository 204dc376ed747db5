package pricing

import (
	"errors"
	"testing"
)

func TestQuoteBuy_FeeReducesShares(t *testing.T) {
	b, _ := LiquidityToB(100)

	noFee, err := QuoteBuy(50, 0, 0, b, SideYes, 0)
	if err != nil {
		t.Fatalf("QuoteBuy no fee: %v", err)
	}
	withFee, err := QuoteBuy(50, 0, 0, b, SideYes, 0.01)
	if err != nil {
		t.Fatalf("QuoteBuy 1%% fee: %v", err)
	}

	if withFee.Shares >= noFee.Shares {
		t.Errorf("fee-adjusted shares %g should be strictly less than no-fee %g",
			withFee.Shares, noFee.Shares)
	}
	if !almostEqual(withFee.FeeAmount, 0.5, tol) {
		t.Errorf("fee = %g, want 0.50", withFee.FeeAmount)
	}
	if !almostEqual(withFee.NetAmount, 49.5, tol) {
		t.Errorf("net = %g, want 49.50", withFee.NetAmount)
	}
	if !almostEqual(withFee.EffectiveAmount, 50, tol) {
		t.Errorf("effective = %g, want 50", withFee.EffectiveAmount)
	}
	// Shares are priced on the net amount.
	wantShares, err := SharesForValue(49.5, 0, 0, b, SideYes)
	if err != nil {
		t.Fatalf("SharesForValue: %v", err)
	}
	if !almostEqual(withFee.Shares, wantShares, tol) {
		t.Errorf("shares = %g, want %g (priced on net)", withFee.Shares, wantShares)
	}
}

func TestQuoteSell_FeeComesOffGross(t *testing.T) {
	b := 144.27
	q, err := QuoteSell(40, 90, 30, b, SideYes, 0.01)
	if err != nil {
		t.Fatalf("QuoteSell: %v", err)
	}
	gross, err := ValueForShares(40, 90, 30, b, SideYes)
	if err != nil {
		t.Fatalf("ValueForShares: %v", err)
	}
	if !almostEqual(q.GrossValue, gross, tol) {
		t.Errorf("gross = %g, want %g", q.GrossValue, gross)
	}
	if !almostEqual(q.FeeAmount, gross*0.01, tol) {
		t.Errorf("fee = %g, want %g", q.FeeAmount, gross*0.01)
	}
	if !almostEqual(q.NetValue, gross-q.FeeAmount, tol) {
		t.Errorf("net = %g, want gross minus fee %g", q.NetValue, gross-q.FeeAmount)
	}
}

func TestQuote_RejectsBadFeeRate(t *testing.T) {
	if _, err := QuoteBuy(50, 0, 0, 144.27, SideYes, 1); !errors.Is(err, ErrDomain) {
		t.Errorf("fee rate 1.0 should be rejected, got %v", err)
	}
	if _, err := QuoteSell(5, 10, 10, 144.27, SideNo, -0.01); !errors.Is(err, ErrDomain) {
		t.Errorf("negative fee rate should be rejected, got %v", err)
	}
}

func TestQuoteSell_PropagatesOverSell(t *testing.T) {
	if _, err := QuoteSell(11, 10, 10, 144.27, SideYes, 0.01); !errors.Is(err, ErrDomain) {
		t.Errorf("over-sell through the fee layer should fail, got %v", err)
	}
}
