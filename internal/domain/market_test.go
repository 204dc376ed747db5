package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/pricing"
)

// ── Market pricing views ──────────────────────────────────────────────────────

func TestMarket_Probabilities_SumToOne(t *testing.T) {
	m := &domain.Market{
		QYes: decimal.NewFromInt(120),
		QNo:  decimal.NewFromInt(40),
		B:    decimal.NewFromFloat(144.2695),
	}
	yes := m.YesProbability()
	no := m.NoProbability()

	if math.Abs(yes+no-1.0) > 1e-9 {
		t.Errorf("YES + NO should sum to 1, got %f + %f = %f", yes, no, yes+no)
	}
	// More YES issuance means YES trades above 50%.
	if yes <= 0.5 {
		t.Errorf("YesProbability() = %f, want > 0.5 with q_yes > q_no", yes)
	}
}

func TestMarket_FreshMarket_FiftyFifty(t *testing.T) {
	m := &domain.Market{
		QYes: decimal.Zero,
		QNo:  decimal.Zero,
		B:    decimal.NewFromFloat(144.2695),
	}
	if math.Abs(m.YesProbability()-0.5) > 1e-9 {
		t.Errorf("fresh market YesProbability() = %f, want 0.5", m.YesProbability())
	}
}

func TestMarket_ProbabilityFor(t *testing.T) {
	m := &domain.Market{
		QYes: decimal.NewFromInt(50),
		QNo:  decimal.NewFromInt(10),
		B:    decimal.NewFromFloat(100),
	}
	if m.ProbabilityFor(pricing.SideYes) != m.YesProbability() {
		t.Error("ProbabilityFor(YES) should match YesProbability()")
	}
	if m.ProbabilityFor(pricing.SideNo) != m.NoProbability() {
		t.Error("ProbabilityFor(NO) should match NoProbability()")
	}
}

func TestMarket_OutstandingShares(t *testing.T) {
	m := &domain.Market{
		QYes: decimal.NewFromInt(7),
		QNo:  decimal.NewFromInt(3),
	}
	if !m.OutstandingShares(pricing.SideYes).Equal(decimal.NewFromInt(7)) {
		t.Errorf("OutstandingShares(YES) = %s, want 7", m.OutstandingShares(pricing.SideYes))
	}
	if !m.OutstandingShares(pricing.SideNo).Equal(decimal.NewFromInt(3)) {
		t.Errorf("OutstandingShares(NO) = %s, want 3", m.OutstandingShares(pricing.SideNo))
	}
}

// ── Lifecycle gates ───────────────────────────────────────────────────────────

func TestMarket_IsTradeable(t *testing.T) {
	now := time.Now().UTC()
	m := &domain.Market{
		Status:    domain.StatusActive,
		ExpiresAt: now.Add(time.Hour),
	}
	if !m.IsTradeable(now) {
		t.Error("active unexpired market should be tradeable")
	}
	m.Status = domain.StatusSuspended
	if m.IsTradeable(now) {
		t.Error("suspended market should not be tradeable")
	}
	m.Status = domain.StatusActive
	m.ExpiresAt = now.Add(-time.Minute)
	if m.IsTradeable(now) {
		t.Error("expired market should not be tradeable")
	}
}

func TestMarket_IsTerminal(t *testing.T) {
	for _, st := range []domain.MarketStatus{domain.StatusSettled, domain.StatusCancelled} {
		m := &domain.Market{Status: st}
		if !m.IsTerminal() {
			t.Errorf("status %q should be terminal", st)
		}
	}
	m := &domain.Market{Status: domain.StatusContested}
	if m.IsTerminal() {
		t.Error("contested market should not be terminal")
	}
}

func TestMarket_ContestWindowOpen(t *testing.T) {
	now := time.Now().UTC()
	deadline := now.Add(30 * time.Minute)
	m := &domain.Market{
		SettlementStatus: domain.SettlementPendingContest,
		ContestDeadline:  &deadline,
	}
	if !m.ContestWindowOpen(now) {
		t.Error("contest window should be open before deadline")
	}
	if m.ContestWindowOpen(deadline.Add(time.Second)) {
		t.Error("contest window should be closed after deadline")
	}
	m.SettlementStatus = domain.SettlementContested
	if m.ContestWindowOpen(now) {
		t.Error("contest window requires pending_contest status")
	}
}

func TestMarket_VoteWindowOpen(t *testing.T) {
	now := time.Now().UTC()
	deadline := now.Add(30 * time.Minute)
	m := &domain.Market{
		SettlementStatus: domain.SettlementContested,
		VoteDeadline:     &deadline,
	}
	if !m.VoteWindowOpen(now) {
		t.Error("vote window should be open before deadline")
	}
	if m.VoteWindowOpen(deadline) {
		t.Error("vote window should be closed at deadline")
	}
}

func TestTimeLeft(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(2 * time.Minute)
	if got := domain.TimeLeft(&future, now); got != 2*time.Minute {
		t.Errorf("TimeLeft() = %v, want 2m0s", got)
	}
	past := now.Add(-time.Minute)
	if got := domain.TimeLeft(&past, now); got != 0 {
		t.Errorf("TimeLeft(past) = %v, want 0", got)
	}
	if got := domain.TimeLeft(nil, now); got != 0 {
		t.Errorf("TimeLeft(nil) = %v, want 0", got)
	}
}

// ── Odds snapshot ─────────────────────────────────────────────────────────────

func TestMarket_ToOdds(t *testing.T) {
	now := time.Now().UTC()
	m := &domain.Market{
		Status:        domain.StatusActive,
		QYes:          decimal.NewFromInt(10),
		QNo:           decimal.NewFromInt(10),
		B:             decimal.NewFromFloat(144.2695),
		LiquidityPool: decimal.NewFromInt(100),
		TotalVolume:   decimal.NewFromInt(250),
		ExpiresAt:     now.Add(90 * time.Second),
	}
	odds := m.ToOdds(now)

	if math.Abs(odds.YesProbability-0.5) > 1e-9 {
		t.Errorf("symmetric issuance should price at 0.5, got %f", odds.YesProbability)
	}
	if odds.TimeLeftSec != 90 {
		t.Errorf("TimeLeftSec = %d, want 90", odds.TimeLeftSec)
	}
	if !odds.TotalVolume.Equal(m.TotalVolume) {
		t.Errorf("TotalVolume = %s, want %s", odds.TotalVolume, m.TotalVolume)
	}
}
