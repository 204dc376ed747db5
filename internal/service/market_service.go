package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/config"
	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/pricing"
	"github.com/oddsmith/peerbet/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketService
// ──────────────────────────────────────────────────────────────────────────────

// MarketService handles market lifecycle: creation, querying, suspension.
// Settlement transitions live in SettlementService; trades in TradeService.
type MarketService struct {
	db         *sqlx.DB
	marketRepo *repository.MarketRepository
	walletRepo *repository.WalletRepository
	cfg        *config.Config
}

// NewMarketService creates a MarketService.
func NewMarketService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	walletRepo *repository.WalletRepository,
	cfg *config.Config,
) *MarketService {
	return &MarketService{
		db:         db,
		marketRepo: marketRepo,
		walletRepo: walletRepo,
		cfg:        cfg,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateMarket
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarket opens a new YES/NO market.  The creator's initial liquidity is
// debited from their wallet into the market pool, and the liquidity parameter
// b is derived so the creator's worst-case AMM loss equals the subsidy:
//
//	b = initialLiquidity / ln(2)
//
// Both sides start at q=0, so the opening price is 0.50/0.50.
func (s *MarketService) CreateMarket(ctx context.Context, req domain.CreateMarketRequest) (*domain.Market, error) {
	// ── 1. Input validation ──────────────────────────────────────────────────
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("market_service.CreateMarket: %w", domain.ErrInvalidAmount)
	}
	minLiq := decimal.NewFromFloat(s.cfg.Market.MinLiquidity)
	maxLiq := decimal.NewFromFloat(s.cfg.Market.MaxLiquidity)
	if req.InitialLiquidity.LessThan(minLiq) || req.InitialLiquidity.GreaterThan(maxLiq) {
		return nil, domain.ErrInvalidAmount
	}
	if !req.ExpiresAt.After(time.Now()) {
		return nil, domain.ErrInvalidAmount
	}
	if req.Visibility != domain.VisibilityPublic && req.Visibility != domain.VisibilityPrivate {
		req.Visibility = domain.VisibilityPublic
	}

	b, err := pricing.LiquidityToB(req.InitialLiquidity.InexactFloat64())
	if err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: %w", err)
	}

	now := time.Now().UTC()
	m := &domain.Market{
		ID:               uuid.New(),
		CreatorID:        req.CreatorID,
		Question:         strings.TrimSpace(req.Question),
		Visibility:       req.Visibility,
		QYes:             decimalZero(),
		QNo:              decimalZero(),
		B:                domain.DecimalFromFloat(b),
		LiquidityPool:    req.InitialLiquidity,
		TotalVolume:      decimalZero(),
		FeesCollected:    decimalZero(),
		Status:           domain.StatusActive,
		SettlementStatus: domain.SettlementNone,
		ExpiresAt:        req.ExpiresAt.UTC(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// ── 2. Atomically debit the creator and persist the market ───────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	marketID := m.ID
	if err = debitWallet(ctx, tx, s.walletRepo, req.CreatorID, req.InitialLiquidity,
		domain.TxLiquiditySeed, &marketID,
		fmt.Sprintf("Market created: %s", m.Question)); err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: seed: %w", err)
	}
	if err = s.marketRepo.Create(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: db: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: commit: %w", err)
	}

	return m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetMarket fetches a market by ID.  Callers read probabilities directly off
// the returned struct via its method receivers.
func (s *MarketService) GetMarket(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	m, err := s.marketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetMarket: %w", err)
	}
	return m, nil
}

// GetOdds returns the live pricing snapshot for a market.
func (s *MarketService) GetOdds(ctx context.Context, id uuid.UUID) (*domain.MarketOdds, error) {
	m, err := s.marketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetOdds: %w", err)
	}
	odds := m.ToOdds(time.Now())
	return &odds, nil
}

// ListMarkets returns a paginated list of markets.
// status="" returns all statuses.  Returns (markets, total, error).
func (s *MarketService) ListMarkets(ctx context.Context, limit, offset int, status string) ([]*domain.Market, int, error) {
	markets, total, err := s.marketRepo.List(ctx, limit, offset, status)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service.ListMarkets: %w", err)
	}
	return markets, total, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Admin operations
// ──────────────────────────────────────────────────────────────────────────────

// SuspendMarket freezes trading on a market.  Only callable from the
// back-office admin layer.
func (s *MarketService) SuspendMarket(ctx context.Context, marketID uuid.UUID) error {
	if err := s.marketRepo.Suspend(ctx, marketID); err != nil {
		return fmt.Errorf("market_service.SuspendMarket: %w", err)
	}
	return nil
}

// ResumeMarket reopens a suspended market that has no settlement in progress.
func (s *MarketService) ResumeMarket(ctx context.Context, marketID uuid.UUID) error {
	if err := s.marketRepo.Resume(ctx, marketID); err != nil {
		return fmt.Errorf("market_service.ResumeMarket: %w", err)
	}
	return nil
}
