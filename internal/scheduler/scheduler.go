// Package scheduler manages the three background goroutines that keep the
// market lifecycle moving without user interaction:
//  1. settlementLoop    – resolves due settlements (expired contest and vote
//     windows) on a fixed interval and warns about closing vote windows.
//  2. oddsBroadcastLoop – pushes live odds for all active markets to WS clients.
//  3. limiterPruneLoop  – evicts stale rate-limiter buckets.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oddsmith/peerbet/internal/config"
	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/service"
)

// ──────────────────────────────────────────────────────────────────────────────
// WsHub interface — minimally required from the Hub
// ──────────────────────────────────────────────────────────────────────────────

// WsHub defines the broadcast operations the Scheduler needs from the WebSocket
// hub.  Declared here so the scheduler package does not depend on the ws/hub.go
// implementation.
type WsHub interface {
	BroadcastOddsUpdate(odds *domain.MarketOdds)
	BroadcastVoteWindowClosing(marketID uuid.UUID, deadline time.Time)
}

// voteClosingWarning is how long before a vote deadline the closing warning
// goes out.
const voteClosingWarning = 5 * time.Minute

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler wires together the services and runs the background loops.
// Call Start(ctx) once from main(); cancel the context to shut it down
// gracefully.
type Scheduler struct {
	marketSvc     *service.MarketService
	settlementSvc *service.SettlementService
	limiter       *service.ActionLimiter
	hub           WsHub
	cfg           *config.Config
	logger        *slog.Logger

	// markets already warned about their vote deadline; touched only by
	// settlementLoop, so no lock is needed.
	voteWarned map[uuid.UUID]bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	marketSvc *service.MarketService,
	settlementSvc *service.SettlementService,
	limiter *service.ActionLimiter,
	hub WsHub,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		marketSvc:     marketSvc,
		settlementSvc: settlementSvc,
		limiter:       limiter,
		hub:           hub,
		cfg:           cfg,
		logger:        logger,
		voteWarned:    make(map[uuid.UUID]bool),
	}
}

// Start launches the background goroutines.  It returns immediately;
// all loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.settlementLoop(ctx)
	go s.oddsBroadcastLoop(ctx)
	go s.limiterPruneLoop(ctx)
	s.logger.Info("scheduler started")
}

// ──────────────────────────────────────────────────────────────────────────────
// settlementLoop
// ──────────────────────────────────────────────────────────────────────────────

// settlementLoop polls for settlements whose contest or vote window has
// elapsed and finalises them.  Resolution is idempotent, so overlapping
// runs across replicas are harmless.
func (s *Scheduler) settlementLoop(ctx context.Context) {
	defer s.recoverAndLog("settlementLoop")

	ticker := time.NewTicker(s.cfg.Settlement.ReconcileEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlementLoop: shutting down")
			return
		case <-ticker.C:
			if err := s.settlementSvc.ResolveDueSettlements(ctx, time.Now().UTC()); err != nil {
				s.logger.Error("settlementLoop: ResolveDueSettlements", "err", err)
			}
			s.warnClosingVotes(ctx)
		}
	}
}

// warnClosingVotes broadcasts a one-shot vote_window_closing message for every
// contested market whose vote deadline falls within voteClosingWarning.
func (s *Scheduler) warnClosingVotes(ctx context.Context) {
	if s.hub == nil {
		return
	}

	const pageSize = 200
	markets, _, err := s.marketSvc.ListMarkets(ctx, pageSize, 0, string(domain.StatusContested))
	if err != nil {
		s.logger.Warn("settlementLoop: list contested markets failed", "err", err)
		return
	}

	now := time.Now().UTC()
	contested := make(map[uuid.UUID]bool, len(markets))
	for _, m := range markets {
		contested[m.ID] = true
		if m.VoteDeadline == nil || s.voteWarned[m.ID] {
			continue
		}
		if m.VoteDeadline.Sub(now) <= voteClosingWarning {
			s.hub.BroadcastVoteWindowClosing(m.ID, *m.VoteDeadline)
			s.voteWarned[m.ID] = true
		}
	}

	// Resolved markets leave the contested listing; forget them.
	for id := range s.voteWarned {
		if !contested[id] {
			delete(s.voteWarned, id)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// oddsBroadcastLoop
// ──────────────────────────────────────────────────────────────────────────────

// oddsBroadcastLoop pushes an odds snapshot for every active market to all
// connected WS clients on each tick.  Trades also broadcast immediately; this
// loop keeps countdown timers fresh for idle markets.
func (s *Scheduler) oddsBroadcastLoop(ctx context.Context) {
	defer s.recoverAndLog("oddsBroadcastLoop")

	ticker := time.NewTicker(s.cfg.Market.OddsBroadcastEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("oddsBroadcastLoop: shutting down")
			return
		case <-ticker.C:
			s.broadcastOdds(ctx)
		}
	}
}

// broadcastOdds is the inner body of oddsBroadcastLoop, extracted so that
// the defer/recover in the loop catches panics correctly.
func (s *Scheduler) broadcastOdds(ctx context.Context) {
	if s.hub == nil {
		return
	}

	const pageSize = 200
	markets, _, err := s.marketSvc.ListMarkets(ctx, pageSize, 0, string(domain.StatusActive))
	if err != nil {
		s.logger.Warn("oddsBroadcastLoop: list markets failed", "err", err)
		return
	}

	now := time.Now().UTC()
	for _, m := range markets {
		odds := m.ToOdds(now)
		s.hub.BroadcastOddsUpdate(&odds)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// limiterPruneLoop
// ──────────────────────────────────────────────────────────────────────────────

// limiterPruneLoop periodically drops empty buckets from the in-memory action
// limiter so the map does not grow with one entry per user forever.
func (s *Scheduler) limiterPruneLoop(ctx context.Context) {
	defer s.recoverAndLog("limiterPruneLoop")

	ticker := time.NewTicker(s.cfg.Settlement.ActionWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("limiterPruneLoop: shutting down")
			return
		case <-ticker.C:
			s.limiter.Prune()
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
