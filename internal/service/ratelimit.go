package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActionLimiter is a per-user, per-action sliding-window counter used to
// throttle settlement actions (initiate/contest/vote).  It exists to curb
// spam-driven state churn, not to enforce correctness: exceeding the limit
// returns an error, it never silently drops the action.
//
// State is in-memory per process.  Settlement actions are low-frequency and
// idempotency lives in the database, so a process restart resetting the
// window is acceptable.
type ActionLimiter struct {
	mu     sync.Mutex
	events map[limiterKey][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time // overridable in tests
}

type limiterKey struct {
	userID uuid.UUID
	action string
}

// NewActionLimiter creates a limiter allowing limit actions per window.
func NewActionLimiter(limit int, window time.Duration) *ActionLimiter {
	return &ActionLimiter{
		events: make(map[limiterKey][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records one attempt and reports whether it is within the limit.
// Rejected attempts are not recorded, so a throttled user is not pushed
// further into the future by retrying.
func (l *ActionLimiter) Allow(userID uuid.UUID, action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	key := limiterKey{userID: userID, action: action}

	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.events[key] = kept
		return false
	}
	l.events[key] = append(kept, now)
	return true
}

// Prune drops all expired entries.  Called periodically by the scheduler so
// the map does not grow with one-off users.
func (l *ActionLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, times := range l.events {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(l.events, key)
		} else {
			l.events[key] = kept
		}
	}
}
