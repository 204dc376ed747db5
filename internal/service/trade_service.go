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

// Broadcaster is the minimal interface TradeService needs from the WS hub.
type Broadcaster interface {
	BroadcastOddsUpdate(odds *domain.MarketOdds)
	BroadcastTradeExecuted(marketID uuid.UUID, side pricing.Side, shares decimal.Decimal)
}

// ──────────────────────────────────────────────────────────────────────────────
// TradeService
// ──────────────────────────────────────────────────────────────────────────────

// TradeService executes buys and sells against the LMSR market maker.
// All money movement happens inside a single PostgreSQL transaction, and
// every mutation of a market's q_yes/q_no runs under that market's row lock,
// so concurrent trades on the same market serialize.
type TradeService struct {
	db           *sqlx.DB
	marketRepo   *repository.MarketRepository
	positionRepo *repository.PositionRepository
	walletRepo   *repository.WalletRepository
	cfg          *config.Config
	broadcaster  Broadcaster // injected after WS Hub is built
}

// NewTradeService creates a TradeService.
func NewTradeService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	positionRepo *repository.PositionRepository,
	walletRepo *repository.WalletRepository,
	cfg *config.Config,
) *TradeService {
	return &TradeService{
		db:           db,
		marketRepo:   marketRepo,
		positionRepo: positionRepo,
		walletRepo:   walletRepo,
		cfg:          cfg,
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *TradeService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// ──────────────────────────────────────────────────────────────────────────────
// ExecuteTrade (buy)
// ──────────────────────────────────────────────────────────────────────────────

// ExecuteTrade buys shares on one side of a market.  The flat fee comes off
// the submitted amount first; the net amount moves the LMSR curve.  Inside a
// single transaction it locks the market row, recomputes the quote against
// the locked issuance, checks slippage against the caller's expected price,
// debits the wallet, updates the market, and upserts the position.
func (s *TradeService) ExecuteTrade(ctx context.Context, req domain.TradeRequest) (*domain.TradeResult, error) {
	// ── 1. Input validation (before any state change) ────────────────────────
	if !req.Side.IsValid() {
		return nil, domain.ErrInvalidSide
	}
	minTrade := decimal.NewFromFloat(s.cfg.Market.MinTradeAmount)
	if !req.Amount.IsPositive() || req.Amount.LessThan(minTrade) {
		return nil, domain.ErrInvalidAmount
	}

	// ── 2. Begin transaction ─────────────────────────────────────────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("trade_service.ExecuteTrade: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// ── 3. Lock the market row and verify tradeability ───────────────────────
	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("trade_service.ExecuteTrade: get market: %w", err)
	}
	if err = s.checkTradeable(market, req.UserID); err != nil {
		return nil, err
	}

	// ── 4. Price the trade against the locked issuance ───────────────────────
	quote, err := pricing.QuoteBuy(
		req.Amount.InexactFloat64(),
		market.QYes.InexactFloat64(),
		market.QNo.InexactFloat64(),
		market.B.InexactFloat64(),
		req.Side,
		s.cfg.Market.FeeRate,
	)
	if err != nil {
		err = fmt.Errorf("trade_service.ExecuteTrade: %w: %v", domain.ErrNumeric, err)
		return nil, err
	}
	shares := domain.DecimalFromFloat(quote.Shares)
	if !shares.IsPositive() {
		err = domain.ErrInvalidTradeResult
		return nil, err
	}
	avgPrice := domain.DecimalFromFloat(quote.AvgPrice)

	// ── 5. Slippage gate ─────────────────────────────────────────────────────
	if err = s.checkSlippage(req.ExpectedPrice, avgPrice); err != nil {
		return nil, err
	}

	// ── 6. Debit the wallet (gross amount) ───────────────────────────────────
	feeAmount := domain.DecimalFromFloat(quote.FeeAmount)
	netAmount := req.Amount.Sub(feeAmount)
	marketID := req.MarketID
	if err = debitWallet(ctx, tx, s.walletRepo, req.UserID, req.Amount,
		domain.TxTradeBuy, &marketID,
		fmt.Sprintf("Buy %s %s shares @ %s", shares.StringFixed(4), req.Side, avgPrice.StringFixed(4))); err != nil {
		return nil, fmt.Errorf("trade_service.ExecuteTrade: debit: %w", err)
	}

	// ── 7. Update market state ───────────────────────────────────────────────
	// Fee goes to the platform ledger; only the net amount backs the pool.
	if err = s.marketRepo.ApplyTrade(ctx, tx, req.MarketID, req.Side,
		shares, netAmount, netAmount, feeAmount); err != nil {
		return nil, fmt.Errorf("trade_service.ExecuteTrade: apply: %w", err)
	}
	if feeAmount.IsPositive() {
		if err = appendPlatformLedger(ctx, tx, s.walletRepo, domain.LedgerTradeFee,
			feeAmount, &marketID, "Trade fee (buy)"); err != nil {
			return nil, fmt.Errorf("trade_service.ExecuteTrade: ledger: %w", err)
		}
	}

	// ── 8. Upsert the position ───────────────────────────────────────────────
	position, err := s.loadOrNewPosition(ctx, tx, req.UserID, req.MarketID, req.Side)
	if err != nil {
		return nil, fmt.Errorf("trade_service.ExecuteTrade: position: %w", err)
	}
	position.ApplyBuy(shares, avgPrice, netAmount)
	if err = s.positionRepo.Upsert(ctx, tx, position); err != nil {
		return nil, fmt.Errorf("trade_service.ExecuteTrade: upsert: %w", err)
	}

	// ── 9. Commit ────────────────────────────────────────────────────────────
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("trade_service.ExecuteTrade: commit: %w", err)
	}

	result := s.buildTradeResult(market, req.Side, shares, avgPrice, req.Amount, feeAmount, netAmount)
	go s.postTradeAsync(req.MarketID, req.Side, shares)
	return result, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// SellShares
// ──────────────────────────────────────────────────────────────────────────────

// SellShares sells part or all of a position back to the AMM.  The gross
// value is what the LMSR curve releases; the fee comes off the gross and the
// user receives the net.  Selling more than the position holds is rejected.
func (s *TradeService) SellShares(ctx context.Context, req domain.SellRequest) (*domain.SellResult, error) {
	// ── 1. Input validation ──────────────────────────────────────────────────
	if !req.Side.IsValid() {
		return nil, domain.ErrInvalidSide
	}
	if !req.Shares.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	// ── 2. Begin transaction ─────────────────────────────────────────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("trade_service.SellShares: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// ── 3. Lock the market row and verify tradeability ───────────────────────
	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("trade_service.SellShares: get market: %w", err)
	}
	if err = s.checkTradeable(market, req.UserID); err != nil {
		return nil, err
	}

	// ── 4. Lock the position and check the holding ───────────────────────────
	position, err := s.positionRepo.GetForUpdate(ctx, tx, req.UserID, req.MarketID, req.Side)
	if err != nil {
		return nil, fmt.Errorf("trade_service.SellShares: get position: %w", err)
	}
	if position.Shares.LessThan(req.Shares) {
		err = domain.ErrInsufficientShares
		return nil, err
	}

	// ── 5. Price the sell against the locked issuance ────────────────────────
	quote, err := pricing.QuoteSell(
		req.Shares.InexactFloat64(),
		market.QYes.InexactFloat64(),
		market.QNo.InexactFloat64(),
		market.B.InexactFloat64(),
		req.Side,
		s.cfg.Market.FeeRate,
	)
	if err != nil {
		if errors.Is(err, pricing.ErrDomain) {
			err = domain.ErrInsufficientShares
			return nil, err
		}
		err = fmt.Errorf("trade_service.SellShares: %w: %v", domain.ErrNumeric, err)
		return nil, err
	}
	grossValue := domain.DecimalFromFloat(quote.GrossValue)
	feeAmount := domain.DecimalFromFloat(quote.FeeAmount)
	netValue := grossValue.Sub(feeAmount)
	avgPrice := domain.DecimalFromFloat(quote.AvgPrice)

	// ── 6. Slippage gate ─────────────────────────────────────────────────────
	if err = s.checkSlippage(req.ExpectedPrice, avgPrice); err != nil {
		return nil, err
	}

	// ── 7. Update market state ───────────────────────────────────────────────
	// Issuance shrinks and the pool releases the gross value; the fee portion
	// is routed to the platform ledger rather than the seller.
	marketID := req.MarketID
	if err = s.marketRepo.ApplyTrade(ctx, tx, req.MarketID, req.Side,
		req.Shares.Neg(), grossValue.Neg(), grossValue, feeAmount); err != nil {
		return nil, fmt.Errorf("trade_service.SellShares: apply: %w", err)
	}
	if feeAmount.IsPositive() {
		if err = appendPlatformLedger(ctx, tx, s.walletRepo, domain.LedgerTradeFee,
			feeAmount, &marketID, "Trade fee (sell)"); err != nil {
			return nil, fmt.Errorf("trade_service.SellShares: ledger: %w", err)
		}
	}

	// ── 8. Credit the wallet and shrink the position ─────────────────────────
	if err = creditWallet(ctx, tx, s.walletRepo, req.UserID, netValue,
		domain.TxTradeSell, &marketID,
		fmt.Sprintf("Sell %s %s shares @ %s", req.Shares.StringFixed(4), req.Side, avgPrice.StringFixed(4))); err != nil {
		return nil, fmt.Errorf("trade_service.SellShares: credit: %w", err)
	}
	position.ApplySell(req.Shares)
	if err = s.positionRepo.Upsert(ctx, tx, position); err != nil {
		return nil, fmt.Errorf("trade_service.SellShares: upsert: %w", err)
	}

	// ── 9. Commit ────────────────────────────────────────────────────────────
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("trade_service.SellShares: commit: %w", err)
	}

	qy := market.QYes.InexactFloat64()
	qn := market.QNo.InexactFloat64()
	b := market.B.InexactFloat64()
	if req.Side == pricing.SideYes {
		qy -= req.Shares.InexactFloat64()
	} else {
		qn -= req.Shares.InexactFloat64()
	}
	result := &domain.SellResult{
		MarketID:    req.MarketID,
		Side:        req.Side,
		Shares:      req.Shares,
		AvgPrice:    avgPrice,
		GrossValue:  grossValue,
		FeeAmount:   feeAmount,
		NetValue:    netValue,
		NewYesPrice: pricing.YesProbability(qy, qn, b),
		NewNoPrice:  pricing.NoProbability(qy, qn, b),
		ExecutedAt:  time.Now().UTC(),
	}
	go s.postTradeAsync(req.MarketID, req.Side, req.Shares.Neg())
	return result, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetMyPositions returns paginated positions for a user.
func (s *TradeService) GetMyPositions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Position, error) {
	positions, err := s.positionRepo.GetByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("trade_service.GetMyPositions: %w", err)
	}
	return positions, nil
}

// QuoteTrade prices a prospective buy without executing it.  Read-only; the
// quote can go stale the moment another trade commits.
func (s *TradeService) QuoteTrade(ctx context.Context, marketID uuid.UUID, side pricing.Side, amount decimal.Decimal) (*pricing.BuyQuote, error) {
	if !side.IsValid() {
		return nil, domain.ErrInvalidSide
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("trade_service.QuoteTrade: %w", err)
	}
	quote, err := pricing.QuoteBuy(
		amount.InexactFloat64(),
		market.QYes.InexactFloat64(),
		market.QNo.InexactFloat64(),
		market.B.InexactFloat64(),
		side,
		s.cfg.Market.FeeRate,
	)
	if err != nil {
		return nil, fmt.Errorf("trade_service.QuoteTrade: %w: %v", domain.ErrNumeric, err)
	}
	return quote, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────────────────────────

// checkTradeable enforces market state and the private-market conflict rule:
// creators of private markets may not trade their own market.
func (s *TradeService) checkTradeable(market *domain.Market, userID uuid.UUID) error {
	if !market.IsTradeable(time.Now()) {
		return domain.ErrMarketNotTradeable
	}
	if market.Visibility == domain.VisibilityPrivate && market.CreatorID == userID {
		return domain.ErrMarketNotTradeable
	}
	return nil
}

// checkSlippage rejects the trade when the realized average price deviates
// from the caller's expected price beyond the configured relative tolerance.
// A zero expected price skips the check (market order).
func (s *TradeService) checkSlippage(expected, realized decimal.Decimal) error {
	if expected.IsZero() {
		return nil
	}
	if !expected.IsPositive() {
		return domain.ErrInvalidAmount
	}
	tolerance := decimal.NewFromFloat(s.cfg.Market.SlippageTolerance)
	deviation := realized.Sub(expected).Abs().Div(expected)
	if deviation.GreaterThan(tolerance) {
		return &domain.SlippageError{
			ExpectedPrice: expected,
			RealizedPrice: realized,
			Tolerance:     tolerance,
		}
	}
	return nil
}

// loadOrNewPosition returns the locked existing position or a fresh zero one.
func (s *TradeService) loadOrNewPosition(ctx context.Context, tx *sqlx.Tx, userID, marketID uuid.UUID, side pricing.Side) (*domain.Position, error) {
	position, err := s.positionRepo.GetForUpdate(ctx, tx, userID, marketID, side)
	if err == nil {
		return position, nil
	}
	if !errors.Is(err, domain.ErrPositionNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.Position{
		ID:             uuid.New(),
		UserID:         userID,
		MarketID:       marketID,
		Side:           side,
		Shares:         decimalZero(),
		AvgPrice:       decimalZero(),
		AmountInvested: decimalZero(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// buildTradeResult assembles the post-commit view of a buy.  market still
// holds the pre-trade issuance, so the new prices are recomputed here.
func (s *TradeService) buildTradeResult(
	market *domain.Market,
	side pricing.Side,
	shares, avgPrice, gross, fee, net decimal.Decimal,
) *domain.TradeResult {
	qy := market.QYes.InexactFloat64()
	qn := market.QNo.InexactFloat64()
	b := market.B.InexactFloat64()
	if side == pricing.SideYes {
		qy += shares.InexactFloat64()
	} else {
		qn += shares.InexactFloat64()
	}
	return &domain.TradeResult{
		MarketID:    market.ID,
		Side:        side,
		Shares:      shares,
		AvgPrice:    avgPrice,
		GrossAmount: gross,
		FeeAmount:   fee,
		NetAmount:   net,
		NewYesPrice: pricing.YesProbability(qy, qn, b),
		NewNoPrice:  pricing.NoProbability(qy, qn, b),
		ExecutedAt:  time.Now().UTC(),
	}
}

// postTradeAsync pushes the updated odds over WS after a committed trade.
// Runs in a goroutine; errors are intentionally swallowed (monitoring via logs).
func (s *TradeService) postTradeAsync(marketID uuid.UUID, side pricing.Side, shares decimal.Decimal) {
	if s.broadcaster == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		log.Printf("[trade] post-trade broadcast skipped for market %s: %v", marketID, err)
		return
	}
	odds := market.ToOdds(time.Now())
	s.broadcaster.BroadcastOddsUpdate(&odds)
	s.broadcaster.BroadcastTradeExecuted(marketID, side, shares)
}
