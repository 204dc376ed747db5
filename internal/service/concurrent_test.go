package service_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/service"
)

// TestConcurrentWalletDebit simulates 50 goroutines simultaneously deducting
// a fixed amount from a shared balance — protected by a mutex.
// This test verifies our concurrency guard pattern compiles and passes -race.
//
// In the real TradeService, the DB row-level FOR UPDATE lock provides this
// guarantee.  Here we replicate the same guard with sync primitives so
// the race detector can confirm the pattern is sound.
func TestConcurrentWalletDebit(t *testing.T) {
	const workers = 50
	const costEach = 10

	balance := decimal.NewFromInt(int64(workers * costEach)) // exact total
	var mu sync.Mutex
	var failedTrades int64 // rejected for lack of funds (zero expected here)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			cost := decimal.NewFromInt(costEach)

			mu.Lock()
			defer mu.Unlock()

			if balance.LessThan(cost) {
				atomic.AddInt64(&failedTrades, 1)
				return
			}
			balance = balance.Sub(cost)
		}()
	}
	wg.Wait()

	if failedTrades > 0 {
		t.Errorf("expected 0 failed trades, got %d", failedTrades)
	}
	// Balance should be exactly 0 after exactly 50 × 10 deductions.
	if !balance.IsZero() {
		t.Errorf("final balance should be 0, got %s", balance)
	}
}

// TestConcurrentResolveGuard verifies the finalize-once pattern under
// concurrent access: only one of N goroutines wins the terminal transition.
// The real guard is the `WHERE settlement_status <> 'resolved'` UPDATE.
func TestConcurrentResolveGuard(t *testing.T) {
	const workers = 20

	var mu sync.Mutex
	resolved := false
	var winners int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mu.Lock()
			defer mu.Unlock()
			if resolved {
				return
			}
			resolved = true
			atomic.AddInt64(&winners, 1)
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("exactly one resolver should win, got %d", winners)
	}
}

// TestConcurrentActionLimiter hammers one user's throttle from many
// goroutines and checks the allowance is never exceeded.
func TestConcurrentActionLimiter(t *testing.T) {
	const workers = 40
	const limit = 5

	l := service.NewActionLimiter(limit, time.Minute)
	user := uuid.New()

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(user, "vote") {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Errorf("allowed = %d, want exactly %d", allowed, limit)
	}
}
