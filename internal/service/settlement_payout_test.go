package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/pricing"
)

// ── Bond redistribution ───────────────────────────────────────────────────────

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func stake(amount string, outcome bool) bondStake {
	return bondStake{userID: uuid.New(), amount: money(amount), outcome: outcome}
}

// stakedTotal sums every bond put at risk, winners and losers alike.
func stakedTotal(stakes []bondStake) decimal.Decimal {
	total := decimalZero()
	for _, st := range stakes {
		total = total.Add(st.amount)
	}
	return total
}

func paidTotal(payouts []bondPayout, dust decimal.Decimal) decimal.Decimal {
	total := dust
	for _, p := range payouts {
		total = total.Add(p.bondReturn).Add(p.reward)
	}
	return total
}

func TestSplitBondStakes_MajorityUpholdsProposal(t *testing.T) {
	// Creator proposed YES ($10), contestant backed NO ($50), three voters
	// at $25 split 2 YES / 1 NO.  With the implicit ballots the tally is
	// 3–2 for YES, so the NO side forfeits $75 to the $60 of YES bonds.
	creator := stake("10", true)
	contestant := stake("50", false)
	voterA := stake("25", true)
	voterB := stake("25", true)
	voterC := stake("25", false)
	stakes := []bondStake{creator, contestant, voterA, voterB, voterC}

	payouts, dust := splitBondStakes(stakes, true)

	if len(payouts) != 3 {
		t.Fatalf("payouts = %d, want 3 winners", len(payouts))
	}
	want := map[uuid.UUID]struct{ ret, reward string }{
		creator.userID: {"10", "12.5"},
		voterA.userID:  {"25", "31.25"},
		voterB.userID:  {"25", "31.25"},
	}
	for _, p := range payouts {
		w, ok := want[p.userID]
		if !ok {
			t.Fatalf("unexpected payout for %s", p.userID)
		}
		if !p.bondReturn.Equal(money(w.ret)) {
			t.Errorf("bond return for %s = %s, want %s", p.userID, p.bondReturn, w.ret)
		}
		if !p.reward.Equal(money(w.reward)) {
			t.Errorf("reward for %s = %s, want %s", p.userID, p.reward, w.reward)
		}
	}
	if !dust.IsZero() {
		t.Errorf("dust = %s, want 0", dust)
	}
	if got, staked := paidTotal(payouts, dust), stakedTotal(stakes); !got.Equal(staked) {
		t.Errorf("returns+rewards+dust = %s, staked = %s", got, staked)
	}
}

func TestSplitBondStakes_LosersGetNothing(t *testing.T) {
	loser := stake("50", false)
	payouts, _ := splitBondStakes([]bondStake{stake("10", true), loser}, true)
	for _, p := range payouts {
		if p.userID == loser.userID {
			t.Fatal("forfeited stake appeared in the payout plan")
		}
	}
}

func TestSplitBondStakes_RoundingDustStaysPositive(t *testing.T) {
	// $10 forfeited across three equal $1 winners: each reward rounds to
	// 3.33333333 and the remaining 0.00000001 must land in dust, not vanish.
	stakes := []bondStake{
		stake("1", true), stake("1", true), stake("1", true),
		stake("10", false),
	}
	payouts, dust := splitBondStakes(stakes, true)

	for _, p := range payouts {
		if !p.reward.Equal(money("3.33333333")) {
			t.Errorf("reward = %s, want 3.33333333", p.reward)
		}
	}
	if !dust.Equal(money("0.00000001")) {
		t.Errorf("dust = %s, want 0.00000001", dust)
	}
	if got, staked := paidTotal(payouts, dust), stakedTotal(stakes); !got.Equal(staked) {
		t.Errorf("returns+rewards+dust = %s, staked = %s", got, staked)
	}
}

func TestSplitBondStakes_NoForfeits_NoRewards(t *testing.T) {
	payouts, dust := splitBondStakes([]bondStake{stake("10", true), stake("25", true)}, true)
	for _, p := range payouts {
		if !p.reward.IsZero() {
			t.Errorf("reward = %s, want 0 when nothing was forfeited", p.reward)
		}
	}
	if !dust.IsZero() {
		t.Errorf("dust = %s, want 0", dust)
	}
}

// ── Winning payouts ───────────────────────────────────────────────────────────

func position(side pricing.Side, shares, invested string) *domain.Position {
	return &domain.Position{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Side:           side,
		Shares:         money(shares),
		AmountInvested: money(invested),
	}
}

func TestPlanWinningPayouts_DollarPerShare(t *testing.T) {
	yesA := position(pricing.SideYes, "30", "18")
	yesB := position(pricing.SideYes, "12.5", "9")
	no := position(pricing.SideNo, "40", "22")
	positions := []*domain.Position{yesA, yesB, no}

	credits, totalPaid := planWinningPayouts(positions, true)

	if len(credits) != 2 {
		t.Fatalf("credits = %d, want 2", len(credits))
	}
	byUser := map[uuid.UUID]decimal.Decimal{}
	for _, c := range credits {
		byUser[c.userID] = c.amount
	}
	if got := byUser[yesA.UserID]; !got.Equal(money("30")) {
		t.Errorf("payout A = %s, want 30", got)
	}
	if got := byUser[yesB.UserID]; !got.Equal(money("12.5")) {
		t.Errorf("payout B = %s, want 12.5", got)
	}
	if _, ok := byUser[no.UserID]; ok {
		t.Error("losing side must not be paid")
	}
	if !totalPaid.Equal(money("42.5")) {
		t.Errorf("totalPaid = %s, want 42.5", totalPaid)
	}
}

func TestPlanWinningPayouts_NoResolution(t *testing.T) {
	positions := []*domain.Position{
		position(pricing.SideYes, "10", "6"),
		position(pricing.SideNo, "5", "2"),
	}
	credits, totalPaid := planWinningPayouts(positions, false)
	if len(credits) != 1 || !totalPaid.Equal(money("5")) {
		t.Errorf("credits = %d, totalPaid = %s, want 1 credit of 5", len(credits), totalPaid)
	}
}

// ── Cancellation refunds ──────────────────────────────────────────────────────

func TestPlanCancellationRefunds_ExactCostBasis(t *testing.T) {
	a := position(pricing.SideYes, "42", "30.5")
	b := position(pricing.SideNo, "17", "19.5")
	empty := position(pricing.SideYes, "0", "0")
	positions := []*domain.Position{a, b, empty}

	refunds, leftover := planCancellationRefunds(positions, money("100"))

	if len(refunds) != 2 {
		t.Fatalf("refunds = %d, want 2 (zero-basis positions skipped)", len(refunds))
	}
	byUser := map[uuid.UUID]decimal.Decimal{}
	for _, r := range refunds {
		byUser[r.userID] = r.amount
	}
	if got := byUser[a.UserID]; !got.Equal(money("30.5")) {
		t.Errorf("refund A = %s, want exactly 30.5", got)
	}
	if got := byUser[b.UserID]; !got.Equal(money("19.5")) {
		t.Errorf("refund B = %s, want exactly 19.5", got)
	}
	if !leftover.Equal(money("50")) {
		t.Errorf("leftover = %s, want 50 back to the creator", leftover)
	}
}

func TestPlanCancellationRefunds_PoolShortfall(t *testing.T) {
	positions := []*domain.Position{
		position(pricing.SideYes, "42", "30"),
		position(pricing.SideNo, "17", "20"),
	}
	_, leftover := planCancellationRefunds(positions, money("40"))
	if !leftover.Equal(money("-10")) {
		t.Errorf("leftover = %s, want -10 absorbed by the platform", leftover)
	}
}
