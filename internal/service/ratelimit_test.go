package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// ── ActionLimiter ─────────────────────────────────────────────────────────────

func TestActionLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewActionLimiter(3, time.Minute)
	user := uuid.New()

	for i := 0; i < 3; i++ {
		if !l.Allow(user, "vote") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow(user, "vote") {
		t.Error("fourth attempt within the window should be rejected")
	}
}

func TestActionLimiter_IsolatesUsersAndActions(t *testing.T) {
	l := NewActionLimiter(1, time.Minute)
	alice := uuid.New()
	bob := uuid.New()

	if !l.Allow(alice, "contest") {
		t.Fatal("first attempt should be allowed")
	}
	if l.Allow(alice, "contest") {
		t.Error("alice's second contest should be rejected")
	}
	// Different action, same user.
	if !l.Allow(alice, "vote") {
		t.Error("limits are per action, vote should still be allowed")
	}
	// Same action, different user.
	if !l.Allow(bob, "contest") {
		t.Error("limits are per user, bob should still be allowed")
	}
}

func TestActionLimiter_WindowSlides(t *testing.T) {
	l := NewActionLimiter(2, time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	user := uuid.New()
	if !l.Allow(user, "initiate") || !l.Allow(user, "initiate") {
		t.Fatal("first two attempts should be allowed")
	}
	if l.Allow(user, "initiate") {
		t.Fatal("third attempt inside the window should be rejected")
	}

	// Once the window passes, the user gets a fresh allowance.
	now = base.Add(time.Minute + time.Second)
	if !l.Allow(user, "initiate") {
		t.Error("attempt after the window slid should be allowed")
	}
}

func TestActionLimiter_RejectedAttemptsNotRecorded(t *testing.T) {
	l := NewActionLimiter(1, time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	user := uuid.New()
	l.Allow(user, "vote")

	// Hammering while throttled must not extend the lockout.
	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		if l.Allow(user, "vote") {
			t.Fatal("attempts inside the window should stay rejected")
		}
	}
	now = base.Add(time.Minute + time.Second)
	if !l.Allow(user, "vote") {
		t.Error("user should be allowed one window after the original attempt")
	}
}

func TestActionLimiter_PruneDropsExpired(t *testing.T) {
	l := NewActionLimiter(5, time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	l.Allow(uuid.New(), "vote")
	l.Allow(uuid.New(), "contest")
	if len(l.events) != 2 {
		t.Fatalf("expected 2 tracked keys, got %d", len(l.events))
	}

	now = base.Add(2 * time.Minute)
	l.Prune()
	if len(l.events) != 0 {
		t.Errorf("expected all keys pruned, got %d", len(l.events))
	}
}
