package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/config"
	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/pricing"
	"github.com/oddsmith/peerbet/internal/repository"
)

// SettlementBroadcaster is the minimal interface SettlementService needs from
// the WS hub.
type SettlementBroadcaster interface {
	BroadcastSettlementProposed(marketID uuid.UUID, outcome bool, deadline time.Time)
	BroadcastContestOpened(marketID uuid.UUID, deadline time.Time)
	BroadcastMarketSettled(marketID uuid.UUID, outcome *bool, cancelled bool)
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService drives the dispute protocol: propose, contest, vote, and
// the poll-driven resolution that pays out positions and redistributes bonds.
// Every transition runs under the market's row lock, and resolution is
// idempotent: overlapping scheduler runs race on a terminal-state UPDATE and
// only one wins.
type SettlementService struct {
	db           *sqlx.DB
	marketRepo   *repository.MarketRepository
	positionRepo *repository.PositionRepository
	bondRepo     *repository.BondRepository
	walletRepo   *repository.WalletRepository
	limiter      *ActionLimiter
	cfg          *config.Config
	broadcaster  SettlementBroadcaster // injected after WS Hub is built
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	positionRepo *repository.PositionRepository,
	bondRepo *repository.BondRepository,
	walletRepo *repository.WalletRepository,
	limiter *ActionLimiter,
	cfg *config.Config,
) *SettlementService {
	return &SettlementService{
		db:           db,
		marketRepo:   marketRepo,
		positionRepo: positionRepo,
		bondRepo:     bondRepo,
		walletRepo:   walletRepo,
		limiter:      limiter,
		cfg:          cfg,
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *SettlementService) SetBroadcaster(b SettlementBroadcaster) { s.broadcaster = b }

// ──────────────────────────────────────────────────────────────────────────────
// InitiateSettlement
// ──────────────────────────────────────────────────────────────────────────────

// InitiateSettlement lets the market creator propose the final outcome.  The
// creator escrows a bond, trading freezes, and a contest window opens.  Only
// the creator, only once per market.
func (s *SettlementService) InitiateSettlement(ctx context.Context, marketID, creatorID uuid.UUID, outcome bool) (*domain.SettlementBond, error) {
	if !s.limiter.Allow(creatorID, "initiate") {
		return nil, domain.ErrRateLimitExceeded
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.InitiateSettlement: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, marketID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.InitiateSettlement: get market: %w", err)
	}
	if market.CreatorID != creatorID {
		err = domain.ErrNotCreator
		return nil, err
	}
	if market.IsTerminal() {
		err = domain.ErrAlreadySettled
		return nil, err
	}
	if market.SettlementStatus != domain.SettlementNone {
		err = domain.ErrAlreadySettling
		return nil, err
	}

	now := time.Now().UTC()
	bondAmount := decimal.NewFromFloat(s.cfg.Settlement.CreatorBond)
	bond := &domain.SettlementBond{
		ID:            uuid.New(),
		MarketID:      marketID,
		CreatorID:     creatorID,
		BondAmount:    bondAmount,
		OutcomeChosen: outcome,
		Status:        domain.BondActive,
		CreatedAt:     now,
	}

	mID := marketID
	if err = debitWallet(ctx, tx, s.walletRepo, creatorID, bondAmount,
		domain.TxBondEscrow, &mID, "Settlement bond escrowed"); err != nil {
		return nil, fmt.Errorf("settlement_service.InitiateSettlement: escrow: %w", err)
	}
	if err = s.bondRepo.CreateSettlementBond(ctx, tx, bond); err != nil {
		return nil, fmt.Errorf("settlement_service.InitiateSettlement: bond: %w", err)
	}

	contestDeadline := now.Add(s.cfg.Settlement.ContestWindow)
	if err = s.marketRepo.BeginSettlement(ctx, tx, marketID, outcome, contestDeadline); err != nil {
		return nil, fmt.Errorf("settlement_service.InitiateSettlement: transition: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("settlement_service.InitiateSettlement: commit: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastSettlementProposed(marketID, outcome, contestDeadline)
	}
	return bond, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ContestSettlement
// ──────────────────────────────────────────────────────────────────────────────

// ContestSettlement lets a position holder dispute the creator's proposed
// outcome inside the contest window.  The contestant escrows a bond and
// implicitly backs the opposite outcome; a voting window opens.
func (s *SettlementService) ContestSettlement(ctx context.Context, marketID, contestantID uuid.UUID) (*domain.ContestBond, error) {
	if !s.limiter.Allow(contestantID, "contest") {
		return nil, domain.ErrRateLimitExceeded
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.ContestSettlement: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, marketID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.ContestSettlement: get market: %w", err)
	}
	switch market.SettlementStatus {
	case domain.SettlementNone:
		err = domain.ErrNoSettlement
		return nil, err
	case domain.SettlementContested:
		err = domain.ErrAlreadyContested
		return nil, err
	case domain.SettlementResolved:
		err = domain.ErrAlreadySettled
		return nil, err
	}

	now := time.Now().UTC()
	if !market.ContestWindowOpen(now) {
		err = domain.ErrContestDeadlinePassed
		return nil, err
	}
	if contestantID == market.CreatorID {
		err = domain.ErrNotEligibleVoter
		return nil, err
	}
	hasPosition, err := s.positionRepo.HasOpenPosition(ctx, contestantID, marketID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.ContestSettlement: position check: %w", err)
	}
	if !hasPosition {
		err = domain.ErrNotEligibleVoter
		return nil, err
	}

	bondAmount := decimal.NewFromFloat(s.cfg.Settlement.ContestBond)
	bond := &domain.ContestBond{
		ID:           uuid.New(),
		MarketID:     marketID,
		ContestantID: contestantID,
		BondAmount:   bondAmount,
		Status:       domain.BondActive,
		CreatedAt:    now,
	}

	mID := marketID
	if err = debitWallet(ctx, tx, s.walletRepo, contestantID, bondAmount,
		domain.TxBondEscrow, &mID, "Contest bond escrowed"); err != nil {
		return nil, fmt.Errorf("settlement_service.ContestSettlement: escrow: %w", err)
	}
	if err = s.bondRepo.CreateContestBond(ctx, tx, bond); err != nil {
		return nil, fmt.Errorf("settlement_service.ContestSettlement: bond: %w", err)
	}

	voteDeadline := now.Add(s.cfg.Settlement.VoteWindow)
	if err = s.marketRepo.MarkContested(ctx, tx, marketID, voteDeadline); err != nil {
		return nil, fmt.Errorf("settlement_service.ContestSettlement: transition: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("settlement_service.ContestSettlement: commit: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastContestOpened(marketID, voteDeadline)
	}
	return bond, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// SubmitVote
// ──────────────────────────────────────────────────────────────────────────────

// SubmitVote records one bonded verdict on a contested settlement.  Eligible
// voters hold an open position and are neither the creator nor the
// contestant; one vote per voter, inside the vote window.
func (s *SettlementService) SubmitVote(ctx context.Context, contestID, voterID uuid.UUID, outcome bool) (*domain.Vote, error) {
	if !s.limiter.Allow(voterID, "vote") {
		return nil, domain.ErrRateLimitExceeded
	}

	contest, err := s.bondRepo.GetContestByID(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.SubmitVote: get contest: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.SubmitVote: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, contest.MarketID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.SubmitVote: get market: %w", err)
	}
	if market.SettlementStatus != domain.SettlementContested || contest.Status != domain.BondActive {
		err = domain.ErrContestNotFound
		return nil, err
	}

	now := time.Now().UTC()
	if !market.VoteWindowOpen(now) {
		err = domain.ErrVoteDeadlinePassed
		return nil, err
	}
	if voterID == market.CreatorID || voterID == contest.ContestantID {
		err = domain.ErrNotEligibleVoter
		return nil, err
	}
	hasPosition, err := s.positionRepo.HasOpenPosition(ctx, voterID, contest.MarketID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.SubmitVote: position check: %w", err)
	}
	if !hasPosition {
		err = domain.ErrNotEligibleVoter
		return nil, err
	}

	bondAmount := decimal.NewFromFloat(s.cfg.Settlement.VoteBond)
	vote := &domain.Vote{
		ID:          uuid.New(),
		ContestID:   contestID,
		MarketID:    contest.MarketID,
		VoterID:     voterID,
		VoteOutcome: outcome,
		BondAmount:  bondAmount,
		Status:      domain.VoteActive,
		CreatedAt:   now,
	}

	voteID := vote.ID
	if err = debitWallet(ctx, tx, s.walletRepo, voterID, bondAmount,
		domain.TxBondEscrow, &voteID, "Vote bond escrowed"); err != nil {
		return nil, fmt.Errorf("settlement_service.SubmitVote: escrow: %w", err)
	}
	if err = s.bondRepo.CreateVote(ctx, tx, vote); err != nil {
		return nil, fmt.Errorf("settlement_service.SubmitVote: vote: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("settlement_service.SubmitVote: commit: %w", err)
	}
	return vote, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// GetSettlementStatus
// ──────────────────────────────────────────────────────────────────────────────

// GetSettlementStatus returns the read-only projection of a market's dispute
// state: bonds, the vote tally including implicit votes, and time remaining
// on whichever window is live.
func (s *SettlementService) GetSettlementStatus(ctx context.Context, marketID uuid.UUID) (*domain.SettlementView, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.GetSettlementStatus: %w", err)
	}

	view := &domain.SettlementView{
		MarketID:         market.ID,
		Status:           market.Status,
		SettlementStatus: market.SettlementStatus,
		CreatorOutcome:   market.CreatorOutcome,
		Outcome:          market.Outcome,
		ContestDeadline:  market.ContestDeadline,
		VoteDeadline:     market.VoteDeadline,
	}
	if market.SettlementStatus == domain.SettlementNone {
		return view, nil
	}

	now := time.Now()
	switch market.SettlementStatus {
	case domain.SettlementPendingContest:
		view.TimeLeftSec = int64(domain.TimeLeft(market.ContestDeadline, now).Seconds())
	case domain.SettlementContested:
		view.TimeLeftSec = int64(domain.TimeLeft(market.VoteDeadline, now).Seconds())
	}

	bond, err := s.bondRepo.GetSettlementBond(ctx, marketID)
	if err != nil && !errors.Is(err, domain.ErrNoSettlement) {
		return nil, fmt.Errorf("settlement_service.GetSettlementStatus: bond: %w", err)
	}
	view.SettlementBond = bond

	contest, err := s.bondRepo.GetContestBond(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrContestNotFound) {
			return view, nil
		}
		return nil, fmt.Errorf("settlement_service.GetSettlementStatus: contest: %w", err)
	}
	view.ContestBond = contest

	votes, err := s.bondRepo.GetVotesByContest(ctx, contest.ID)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.GetSettlementStatus: votes: %w", err)
	}
	if market.CreatorOutcome != nil {
		yes, no := tallyVotes(*market.CreatorOutcome, votes)
		view.YesVotes, view.NoVotes = yes, no
	}
	return view, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ResolveDueSettlements — called by the Scheduler every tick
// ──────────────────────────────────────────────────────────────────────────────

// ResolveDueSettlements fetches every market whose contest or vote window has
// expired as of now and resolves each one.  A single failing market does NOT
// abort the others.  Safe to call early (no-op), late, or concurrently: the
// terminal UPDATE under the row lock lets only one invocation win.  The clock
// is a parameter because the trigger is external and may arrive with skew.
func (s *SettlementService) ResolveDueSettlements(ctx context.Context, now time.Time) error {
	markets, err := s.marketRepo.GetDueSettlements(ctx, now)
	if err != nil {
		return fmt.Errorf("settlement_service.ResolveDueSettlements: fetch: %w", err)
	}

	for _, m := range markets {
		if err := s.resolveMarket(ctx, m.ID, now); err != nil {
			if errors.Is(err, domain.ErrAlreadySettled) {
				continue // another invocation won the race
			}
			log.Printf("[settlement] ERROR resolving market %s: %v", m.ID, err)
			// Continue: do not block other markets because one failed.
		}
	}
	return nil
}

// resolveMarket settles a single market whose window has expired.  All checks
// re-run against the row read under the lock, so the caller's snapshot being
// stale is harmless.
func (s *SettlementService) resolveMarket(ctx context.Context, marketID uuid.UUID, now time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settlement_service.resolveMarket: begin tx: %w", err)
	}
	// Unconditional: a no-op after Commit, and it releases the row lock on
	// every early exit, including the no-op returns below.
	defer func() { _ = tx.Rollback() }()

	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, marketID)
	if err != nil {
		return fmt.Errorf("settlement_service.resolveMarket: get market: %w", err)
	}

	var outcome *bool
	var cancelled bool

	switch market.SettlementStatus {
	case domain.SettlementPendingContest:
		if market.ContestDeadline == nil || now.Before(*market.ContestDeadline) {
			return nil // invoked early, nothing to do
		}
		// Uncontested: the creator's proposal stands and their bond returns.
		if market.CreatorOutcome == nil {
			err = fmt.Errorf("settlement_service.resolveMarket: market %s pending contest with no proposed outcome", market.ID)
			return err
		}
		outcome = market.CreatorOutcome
		if err = s.returnSettlementBond(ctx, tx, market); err != nil {
			return err
		}

	case domain.SettlementContested:
		if market.VoteDeadline == nil || now.Before(*market.VoteDeadline) {
			return nil
		}
		outcome, cancelled, err = s.resolveContest(ctx, tx, market)
		if err != nil {
			return err
		}

	default:
		return nil // nothing pending, or already resolved
	}

	// Pay out or refund every open position, then drain the pool.
	if cancelled {
		err = s.refundPositions(ctx, tx, market)
	} else {
		err = s.payoutPositions(ctx, tx, market, *outcome)
	}
	if err != nil {
		return err
	}

	finalStatus := domain.StatusSettled
	if cancelled {
		finalStatus = domain.StatusCancelled
	}
	if err = s.marketRepo.Finalize(ctx, tx, market.ID, outcome, finalStatus); err != nil {
		return fmt.Errorf("settlement_service.resolveMarket: finalize: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("settlement_service.resolveMarket: commit: %w", err)
	}

	if cancelled {
		log.Printf("[settlement] market %s cancelled (vote tie)", market.ID)
	} else {
		log.Printf("[settlement] market %s resolved: outcome=%t", market.ID, *outcome)
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMarketSettled(market.ID, outcome, cancelled)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Contested resolution: tally and bond redistribution
// ──────────────────────────────────────────────────────────────────────────────

// tallyVotes counts YES/NO verdicts: the creator's implicit vote for their
// proposal, the contestant's implicit vote for the opposite, plus every
// explicit vote.
func tallyVotes(creatorOutcome bool, votes []*domain.Vote) (yes, no int) {
	if creatorOutcome {
		yes++
	} else {
		no++
	}
	// contestant implicitly backs the opposite of the proposal
	if creatorOutcome {
		no++
	} else {
		yes++
	}
	for _, v := range votes {
		if v.VoteOutcome {
			yes++
		} else {
			no++
		}
	}
	return yes, no
}

// bondStake is one participant's skin in the contested tally.
type bondStake struct {
	userID  uuid.UUID
	amount  decimal.Decimal
	outcome bool
}

// bondPayout is one winner's settlement credit after a decided contest.
type bondPayout struct {
	userID     uuid.UUID
	bondReturn decimal.Decimal // their own stake back
	reward     decimal.Decimal // pro-rata share of the forfeited pool
}

// splitBondStakes computes the redistribution for a decided contest: winners
// recover their bond plus a share of the forfeited pool proportional to their
// own bond size; losers forfeit.  dust is the rounding remainder of the
// pro-rata split; the caller books it on the platform ledger so
//
//	Σ bondReturn + Σ reward + dust = Σ staked
//
// holds exactly.
func splitBondStakes(stakes []bondStake, outcome bool) (payouts []bondPayout, dust decimal.Decimal) {
	winnerTotal := decimalZero()
	forfeitedTotal := decimalZero()
	for _, st := range stakes {
		if st.outcome == outcome {
			winnerTotal = winnerTotal.Add(st.amount)
		} else {
			forfeitedTotal = forfeitedTotal.Add(st.amount)
		}
	}

	distributed := decimalZero()
	for _, st := range stakes {
		if st.outcome != outcome {
			continue
		}
		p := bondPayout{userID: st.userID, bondReturn: st.amount, reward: decimalZero()}
		if forfeitedTotal.IsPositive() && winnerTotal.IsPositive() {
			p.reward = forfeitedTotal.Mul(st.amount).Div(winnerTotal).Round(domain.MoneyPlaces)
			distributed = distributed.Add(p.reward)
		}
		payouts = append(payouts, p)
	}
	return payouts, forfeitedTotal.Sub(distributed)
}

// resolveContest tallies the vote and settles every bond.  Returns the final
// outcome, or cancelled=true on a tie (all bonds returned, positions refunded
// at cost basis by the caller).
func (s *SettlementService) resolveContest(ctx context.Context, tx *sqlx.Tx, market *domain.Market) (*bool, bool, error) {
	if market.CreatorOutcome == nil {
		return nil, false, fmt.Errorf("settlement_service.resolveContest: market %s has no proposed outcome", market.ID)
	}
	creatorOutcome := *market.CreatorOutcome

	settlementBond, err := s.bondRepo.GetSettlementBondForUpdate(ctx, tx, market.ID)
	if err != nil {
		return nil, false, fmt.Errorf("settlement_service.resolveContest: settlement bond: %w", err)
	}
	contestBond, err := s.bondRepo.GetContestBondForUpdate(ctx, tx, market.ID)
	if err != nil {
		return nil, false, fmt.Errorf("settlement_service.resolveContest: contest bond: %w", err)
	}
	votes, err := s.bondRepo.GetVotesByContestTx(ctx, tx, contestBond.ID)
	if err != nil {
		return nil, false, fmt.Errorf("settlement_service.resolveContest: votes: %w", err)
	}

	yes, no := tallyVotes(creatorOutcome, votes)

	// Tie: cancel the market and return every bond untouched.
	if yes == no {
		if err := s.returnAllBonds(ctx, tx, market, settlementBond, contestBond, votes); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	outcome := yes > no

	// Collect every staked bond with the side it backed.
	stakes := make([]bondStake, 0, len(votes)+2)
	stakes = append(stakes, bondStake{
		userID: settlementBond.CreatorID, amount: settlementBond.BondAmount, outcome: creatorOutcome,
	})
	stakes = append(stakes, bondStake{
		userID: contestBond.ContestantID, amount: contestBond.BondAmount, outcome: !creatorOutcome,
	})
	for _, v := range votes {
		stakes = append(stakes, bondStake{userID: v.VoterID, amount: v.BondAmount, outcome: v.VoteOutcome})
	}

	mID := market.ID
	payouts, dust := splitBondStakes(stakes, outcome)
	for _, p := range payouts {
		if err := creditWallet(ctx, tx, s.walletRepo, p.userID, p.bondReturn,
			domain.TxBondReturn, &mID, "Bond returned (majority side)"); err != nil {
			return nil, false, fmt.Errorf("settlement_service.resolveContest: return bond: %w", err)
		}
		if p.reward.IsPositive() {
			if err := creditWallet(ctx, tx, s.walletRepo, p.userID, p.reward,
				domain.TxBondReward, &mID, "Share of forfeited bonds"); err != nil {
				return nil, false, fmt.Errorf("settlement_service.resolveContest: reward: %w", err)
			}
		}
	}

	// Rounding dust from the pro-rata split lands in the platform ledger so
	// the conservation check still closes.
	if !dust.IsZero() {
		if err := appendPlatformLedger(ctx, tx, s.walletRepo, domain.LedgerBondAdjustment,
			dust, &mID, "Bond redistribution rounding"); err != nil {
			return nil, false, err
		}
	}

	// Stamp bond and vote statuses.
	sbStatus := domain.BondForfeited
	if creatorOutcome == outcome {
		sbStatus = domain.BondReturned
	}
	if err := s.bondRepo.UpdateSettlementBondStatus(ctx, tx, settlementBond.ID, sbStatus); err != nil {
		return nil, false, fmt.Errorf("settlement_service.resolveContest: mark settlement bond: %w", err)
	}
	cbStatus := domain.BondForfeited
	if creatorOutcome != outcome {
		cbStatus = domain.BondReturned
	}
	if err := s.bondRepo.UpdateContestBondStatus(ctx, tx, contestBond.ID, cbStatus); err != nil {
		return nil, false, fmt.Errorf("settlement_service.resolveContest: mark contest bond: %w", err)
	}
	for _, v := range votes {
		correct := v.VoteOutcome == outcome
		status := domain.VoteLost
		if correct {
			status = domain.VoteWon
		}
		if err := s.bondRepo.ResolveVote(ctx, tx, v.ID, correct, status); err != nil {
			return nil, false, fmt.Errorf("settlement_service.resolveContest: mark vote: %w", err)
		}
	}

	return &outcome, false, nil
}

// returnSettlementBond credits the creator's bond back on an uncontested resolve.
func (s *SettlementService) returnSettlementBond(ctx context.Context, tx *sqlx.Tx, market *domain.Market) error {
	bond, err := s.bondRepo.GetSettlementBondForUpdate(ctx, tx, market.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNoSettlement) {
			return nil // already returned by a previous (partial) run
		}
		return fmt.Errorf("settlement_service.returnSettlementBond: %w", err)
	}
	mID := market.ID
	if err := creditWallet(ctx, tx, s.walletRepo, bond.CreatorID, bond.BondAmount,
		domain.TxBondReturn, &mID, "Settlement bond returned (uncontested)"); err != nil {
		return fmt.Errorf("settlement_service.returnSettlementBond: credit: %w", err)
	}
	if err := s.bondRepo.UpdateSettlementBondStatus(ctx, tx, bond.ID, domain.BondReturned); err != nil {
		return fmt.Errorf("settlement_service.returnSettlementBond: mark: %w", err)
	}
	return nil
}

// returnAllBonds gives everyone their stake back on a tie.
func (s *SettlementService) returnAllBonds(
	ctx context.Context,
	tx *sqlx.Tx,
	market *domain.Market,
	settlementBond *domain.SettlementBond,
	contestBond *domain.ContestBond,
	votes []*domain.Vote,
) error {
	mID := market.ID
	if err := creditWallet(ctx, tx, s.walletRepo, settlementBond.CreatorID, settlementBond.BondAmount,
		domain.TxBondReturn, &mID, "Settlement bond returned (tie)"); err != nil {
		return fmt.Errorf("settlement_service.returnAllBonds: creator: %w", err)
	}
	if err := s.bondRepo.UpdateSettlementBondStatus(ctx, tx, settlementBond.ID, domain.BondReturned); err != nil {
		return fmt.Errorf("settlement_service.returnAllBonds: mark creator: %w", err)
	}
	if err := creditWallet(ctx, tx, s.walletRepo, contestBond.ContestantID, contestBond.BondAmount,
		domain.TxBondReturn, &mID, "Contest bond returned (tie)"); err != nil {
		return fmt.Errorf("settlement_service.returnAllBonds: contestant: %w", err)
	}
	if err := s.bondRepo.UpdateContestBondStatus(ctx, tx, contestBond.ID, domain.BondReturned); err != nil {
		return fmt.Errorf("settlement_service.returnAllBonds: mark contestant: %w", err)
	}
	for _, v := range votes {
		if err := creditWallet(ctx, tx, s.walletRepo, v.VoterID, v.BondAmount,
			domain.TxBondReturn, &mID, "Vote bond returned (tie)"); err != nil {
			return fmt.Errorf("settlement_service.returnAllBonds: voter %s: %w", v.VoterID, err)
		}
		if err := s.bondRepo.RefundVote(ctx, tx, v.ID); err != nil {
			return fmt.Errorf("settlement_service.returnAllBonds: mark vote %s: %w", v.ID, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Payouts and refunds
// ──────────────────────────────────────────────────────────────────────────────

// holderCredit is one position holder's wallet credit in a settlement plan.
type holderCredit struct {
	userID uuid.UUID
	amount decimal.Decimal
	memo   string
}

// planWinningPayouts redeems every share on the winning side at $1.  The
// returned total is what the pool owes the traders; the caller books the
// difference between the pool and the total as captured liquidity.
func planWinningPayouts(positions []*domain.Position, outcome bool) (credits []holderCredit, totalPaid decimal.Decimal) {
	winningSide := pricing.SideNo
	if outcome {
		winningSide = pricing.SideYes
	}
	totalPaid = decimalZero()
	for _, p := range positions {
		if p.Side != winningSide {
			continue
		}
		payout := p.Shares.Round(domain.MoneyPlaces) // $1 per share
		credits = append(credits, holderCredit{
			userID: p.UserID,
			amount: payout,
			memo:   fmt.Sprintf("Payout: %s winning shares", p.Shares.StringFixed(4)),
		})
		totalPaid = totalPaid.Add(payout)
	}
	return credits, totalPaid
}

// planCancellationRefunds returns each holder's cost basis on a cancelled
// market plus the pool leftover: positive leftover goes back to the creator,
// negative leftover is the shortfall the platform absorbs.
func planCancellationRefunds(positions []*domain.Position, pool decimal.Decimal) (refunds []holderCredit, leftover decimal.Decimal) {
	totalRefunded := decimalZero()
	for _, p := range positions {
		if !p.AmountInvested.IsPositive() {
			continue
		}
		refunds = append(refunds, holderCredit{
			userID: p.UserID,
			amount: p.AmountInvested,
			memo:   "Refund: market cancelled",
		})
		totalRefunded = totalRefunded.Add(p.AmountInvested)
	}
	return refunds, pool.Sub(totalRefunded)
}

// payoutPositions redeems every winning share at $1 and zeroes all positions.
// Whatever remains of the pool afterwards is the creator subsidy the traders
// never extracted; it is captured on the platform ledger so the books close.
func (s *SettlementService) payoutPositions(ctx context.Context, tx *sqlx.Tx, market *domain.Market, outcome bool) error {
	positions, err := s.positionRepo.GetOpenByMarketTx(ctx, tx, market.ID)
	if err != nil {
		return fmt.Errorf("settlement_service.payoutPositions: fetch: %w", err)
	}

	mID := market.ID
	credits, totalPaid := planWinningPayouts(positions, outcome)
	for _, c := range credits {
		if err := creditWallet(ctx, tx, s.walletRepo, c.userID, c.amount,
			domain.TxPayout, &mID, c.memo); err != nil {
			return fmt.Errorf("settlement_service.payoutPositions: credit %s: %w", c.userID, err)
		}
	}
	for _, p := range positions {
		if err := s.positionRepo.Zero(ctx, tx, p.ID); err != nil {
			return fmt.Errorf("settlement_service.payoutPositions: zero %s: %w", p.ID, err)
		}
	}

	return s.drainPool(ctx, tx, market, totalPaid, domain.LedgerLiquidityCapture,
		"Pool remainder captured at settlement")
}

// refundPositions returns every open position's cost basis on a cancelled
// market.  The pool remainder goes back to the creator (their subsidy), with
// any shortfall absorbed by the platform ledger.
func (s *SettlementService) refundPositions(ctx context.Context, tx *sqlx.Tx, market *domain.Market) error {
	positions, err := s.positionRepo.GetOpenByMarketTx(ctx, tx, market.ID)
	if err != nil {
		return fmt.Errorf("settlement_service.refundPositions: fetch: %w", err)
	}

	mID := market.ID
	refunds, leftover := planCancellationRefunds(positions, market.LiquidityPool)
	for _, r := range refunds {
		if err := creditWallet(ctx, tx, s.walletRepo, r.userID, r.amount,
			domain.TxRefund, &mID, r.memo); err != nil {
			return fmt.Errorf("settlement_service.refundPositions: credit %s: %w", r.userID, err)
		}
	}
	for _, p := range positions {
		if err := s.positionRepo.Zero(ctx, tx, p.ID); err != nil {
			return fmt.Errorf("settlement_service.refundPositions: zero %s: %w", p.ID, err)
		}
	}

	if leftover.IsPositive() {
		if err := creditWallet(ctx, tx, s.walletRepo, market.CreatorID, leftover,
			domain.TxLiquidityReturn, &mID, "Liquidity returned: market cancelled"); err != nil {
			return fmt.Errorf("settlement_service.refundPositions: return liquidity: %w", err)
		}
	} else if leftover.IsNegative() {
		// Refunds exceeded the pool; the platform absorbs the difference.
		if err := appendPlatformLedger(ctx, tx, s.walletRepo, domain.LedgerLiquidityCapture,
			leftover, &mID, "Pool shortfall on cancellation"); err != nil {
			return err
		}
	}

	if err := s.marketRepo.AdjustPool(ctx, tx, market.ID, market.LiquidityPool.Neg()); err != nil {
		return fmt.Errorf("settlement_service.refundPositions: drain pool: %w", err)
	}
	return nil
}

// drainPool zeroes the market pool and books the remainder (pool minus what
// was paid out) on the platform ledger.  The remainder can be negative within
// rounding; the signed entry keeps conservation exact either way.
func (s *SettlementService) drainPool(
	ctx context.Context,
	tx *sqlx.Tx,
	market *domain.Market,
	paidOut decimal.Decimal,
	entryType domain.LedgerEntryType,
	description string,
) error {
	remainder := market.LiquidityPool.Sub(paidOut)
	mID := market.ID
	if !remainder.IsZero() {
		if err := appendPlatformLedger(ctx, tx, s.walletRepo, entryType, remainder, &mID, description); err != nil {
			return err
		}
	}
	if err := s.marketRepo.AdjustPool(ctx, tx, market.ID, market.LiquidityPool.Neg()); err != nil {
		return fmt.Errorf("settlement_service.drainPool: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Oracle path
// ──────────────────────────────────────────────────────────────────────────────

// ResolveFromOracle settles a market directly from an external outcome,
// bypassing the dispute protocol.  Any bonds already escrowed are returned
// untouched — the oracle preempts the dispute, nobody loses a stake.  The
// same payout routine runs, so conservation holds identically.
func (s *SettlementService) ResolveFromOracle(ctx context.Context, marketID uuid.UUID, outcome bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settlement_service.ResolveFromOracle: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, marketID)
	if err != nil {
		return fmt.Errorf("settlement_service.ResolveFromOracle: get market: %w", err)
	}
	if market.IsTerminal() {
		err = domain.ErrAlreadySettled
		return err
	}

	// Hand back any open dispute stakes.
	settlementBond, err := s.bondRepo.GetSettlementBondForUpdate(ctx, tx, marketID)
	if err != nil && !errors.Is(err, domain.ErrNoSettlement) {
		return fmt.Errorf("settlement_service.ResolveFromOracle: settlement bond: %w", err)
	}
	err = nil
	if settlementBond != nil {
		contestBond, cErr := s.bondRepo.GetContestBondForUpdate(ctx, tx, marketID)
		if cErr != nil && !errors.Is(cErr, domain.ErrContestNotFound) {
			err = fmt.Errorf("settlement_service.ResolveFromOracle: contest bond: %w", cErr)
			return err
		}
		if contestBond != nil {
			votes, vErr := s.bondRepo.GetVotesByContestTx(ctx, tx, contestBond.ID)
			if vErr != nil {
				err = fmt.Errorf("settlement_service.ResolveFromOracle: votes: %w", vErr)
				return err
			}
			if err = s.returnAllBonds(ctx, tx, market, settlementBond, contestBond, votes); err != nil {
				return err
			}
		} else {
			if err = s.returnSettlementBond(ctx, tx, market); err != nil {
				return err
			}
		}
	}

	if err = s.payoutPositions(ctx, tx, market, outcome); err != nil {
		return err
	}
	if err = s.marketRepo.Finalize(ctx, tx, marketID, &outcome, domain.StatusSettled); err != nil {
		return fmt.Errorf("settlement_service.ResolveFromOracle: finalize: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("settlement_service.ResolveFromOracle: commit: %w", err)
	}

	log.Printf("[settlement] market %s resolved from oracle: outcome=%t", marketID, outcome)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMarketSettled(marketID, &outcome, false)
	}
	return nil
}

// CancelMarket voids a market by admin decision: every open position is
// refunded at cost basis, any escrowed dispute bonds go back untouched, and
// the pool remainder returns to the creator.  Same terminal guard as the
// dispute paths, so it cannot race a concurrent resolve.
func (s *SettlementService) CancelMarket(ctx context.Context, marketID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settlement_service.CancelMarket: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, marketID)
	if err != nil {
		return fmt.Errorf("settlement_service.CancelMarket: get market: %w", err)
	}
	if market.IsTerminal() {
		err = domain.ErrAlreadySettled
		return err
	}

	settlementBond, err := s.bondRepo.GetSettlementBondForUpdate(ctx, tx, marketID)
	if err != nil && !errors.Is(err, domain.ErrNoSettlement) {
		return fmt.Errorf("settlement_service.CancelMarket: settlement bond: %w", err)
	}
	err = nil
	if settlementBond != nil {
		contestBond, cErr := s.bondRepo.GetContestBondForUpdate(ctx, tx, marketID)
		if cErr != nil && !errors.Is(cErr, domain.ErrContestNotFound) {
			err = fmt.Errorf("settlement_service.CancelMarket: contest bond: %w", cErr)
			return err
		}
		if contestBond != nil {
			votes, vErr := s.bondRepo.GetVotesByContestTx(ctx, tx, contestBond.ID)
			if vErr != nil {
				err = fmt.Errorf("settlement_service.CancelMarket: votes: %w", vErr)
				return err
			}
			if err = s.returnAllBonds(ctx, tx, market, settlementBond, contestBond, votes); err != nil {
				return err
			}
		} else {
			if err = s.returnSettlementBond(ctx, tx, market); err != nil {
				return err
			}
		}
	}

	if err = s.refundPositions(ctx, tx, market); err != nil {
		return err
	}
	if err = s.marketRepo.Finalize(ctx, tx, marketID, nil, domain.StatusCancelled); err != nil {
		return fmt.Errorf("settlement_service.CancelMarket: finalize: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("settlement_service.CancelMarket: commit: %w", err)
	}

	log.Printf("[settlement] market %s cancelled by admin", marketID)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMarketSettled(marketID, nil, true)
	}
	return nil
}
