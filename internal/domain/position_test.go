package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/domain"
)

// ── Buy accumulation ──────────────────────────────────────────────────────────

func TestPosition_ApplyBuy_FirstFill(t *testing.T) {
	p := &domain.Position{}
	p.ApplyBuy(decimal.NewFromInt(100), decimal.NewFromFloat(0.5), decimal.NewFromInt(50))

	if !p.Shares.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Shares = %s, want 100", p.Shares)
	}
	if !p.AvgPrice.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("AvgPrice = %s, want 0.5", p.AvgPrice)
	}
	if !p.AmountInvested.Equal(decimal.NewFromInt(50)) {
		t.Errorf("AmountInvested = %s, want 50", p.AmountInvested)
	}
}

func TestPosition_ApplyBuy_WeightedAverage(t *testing.T) {
	p := &domain.Position{
		Shares:         decimal.NewFromInt(100),
		AvgPrice:       decimal.NewFromFloat(0.40),
		AmountInvested: decimal.NewFromInt(40),
	}
	// 100 more shares at 0.60: avg = (0.40·100 + 0.60·100) / 200 = 0.50
	p.ApplyBuy(decimal.NewFromInt(100), decimal.NewFromFloat(0.60), decimal.NewFromInt(60))

	if !p.Shares.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Shares = %s, want 200", p.Shares)
	}
	if !p.AvgPrice.Equal(decimal.NewFromFloat(0.50)) {
		t.Errorf("AvgPrice = %s, want 0.50", p.AvgPrice)
	}
	if !p.AmountInvested.Equal(decimal.NewFromInt(100)) {
		t.Errorf("AmountInvested = %s, want 100", p.AmountInvested)
	}
}

// ── Sell reduction ────────────────────────────────────────────────────────────

func TestPosition_ApplySell_Partial(t *testing.T) {
	p := &domain.Position{
		Shares:         decimal.NewFromInt(200),
		AvgPrice:       decimal.NewFromFloat(0.50),
		AmountInvested: decimal.NewFromInt(100),
	}
	p.ApplySell(decimal.NewFromInt(50)) // sells a quarter of the holding

	if !p.Shares.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Shares = %s, want 150", p.Shares)
	}
	if !p.AmountInvested.Equal(decimal.NewFromInt(75)) {
		t.Errorf("AmountInvested = %s, want 75", p.AmountInvested)
	}
	// Cost basis per share stays put on sells.
	if !p.AvgPrice.Equal(decimal.NewFromFloat(0.50)) {
		t.Errorf("AvgPrice = %s, want 0.50 (unchanged)", p.AvgPrice)
	}
}

func TestPosition_ApplySell_Full_ZeroesInvested(t *testing.T) {
	p := &domain.Position{
		Shares:         decimal.NewFromInt(80),
		AvgPrice:       decimal.NewFromFloat(0.25),
		AmountInvested: decimal.NewFromInt(20),
	}
	p.ApplySell(decimal.NewFromInt(80))

	if !p.Shares.IsZero() {
		t.Errorf("Shares = %s, want 0", p.Shares)
	}
	if !p.AmountInvested.IsZero() {
		t.Errorf("AmountInvested = %s, want 0 after closing out", p.AmountInvested)
	}
	if p.HasShares() {
		t.Error("closed position should report HasShares() = false")
	}
}

func TestPosition_ApplySell_EmptyPosition_NoPanic(t *testing.T) {
	p := &domain.Position{}
	p.ApplySell(decimal.NewFromInt(10))
	if !p.Shares.IsZero() {
		t.Errorf("Shares = %s, want 0", p.Shares)
	}
}
