package service

import (
	"testing"

	"github.com/oddsmith/peerbet/internal/domain"
)

// ── Vote tally ────────────────────────────────────────────────────────────────
//
// The tally always includes two implicit ballots: the creator backs their own
// proposal and the contestant backs the opposite.  Explicit votes stack on top.

func vote(outcome bool) *domain.Vote {
	return &domain.Vote{VoteOutcome: outcome}
}

func TestTallyVotes_NoExplicitVotes_IsTie(t *testing.T) {
	// Creator says YES, contestant implicitly says NO: 1–1.
	yes, no := tallyVotes(true, nil)
	if yes != 1 || no != 1 {
		t.Errorf("tallyVotes(true, none) = %d/%d, want 1/1", yes, no)
	}

	yes, no = tallyVotes(false, nil)
	if yes != 1 || no != 1 {
		t.Errorf("tallyVotes(false, none) = %d/%d, want 1/1", yes, no)
	}
}

func TestTallyVotes_SingleVote_BreaksTie(t *testing.T) {
	yes, no := tallyVotes(true, []*domain.Vote{vote(true)})
	if yes != 2 || no != 1 {
		t.Errorf("tallyVotes = %d/%d, want 2/1", yes, no)
	}
	if !(yes > no) {
		t.Error("a single vote for the proposal should uphold it")
	}

	yes, no = tallyVotes(true, []*domain.Vote{vote(false)})
	if yes != 1 || no != 2 {
		t.Errorf("tallyVotes = %d/%d, want 1/2", yes, no)
	}
}

func TestTallyVotes_Majority(t *testing.T) {
	votes := []*domain.Vote{vote(false), vote(false), vote(true)}
	// Creator YES (1), contestant NO (1), explicit 1 YES / 2 NO: 2–3.
	yes, no := tallyVotes(true, votes)
	if yes != 2 || no != 3 {
		t.Errorf("tallyVotes = %d/%d, want 2/3", yes, no)
	}
}

func TestTallyVotes_EvenExplicitVotes_StaysTied(t *testing.T) {
	votes := []*domain.Vote{vote(true), vote(false)}
	yes, no := tallyVotes(true, votes)
	if yes != no {
		t.Errorf("balanced votes should tie, got %d/%d", yes, no)
	}
}
