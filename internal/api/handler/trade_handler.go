package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oddsmith/peerbet/internal/api/middleware"
	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/pricing"
	"github.com/oddsmith/peerbet/internal/service"
	"github.com/shopspring/decimal"
)

// TradeHandler serves buy, sell, quote, and position endpoints.
type TradeHandler struct {
	tradeSvc *service.TradeService
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(tradeSvc *service.TradeService) *TradeHandler {
	return &TradeHandler{tradeSvc: tradeSvc}
}

// Buy godoc
// POST /api/trades [JWT]
// Body: {"market_id":"uuid","side":"YES","amount":"50.00","expected_price":"0.5000"}
func (h *TradeHandler) Buy(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		MarketID      string `json:"market_id"      binding:"required"`
		Side          string `json:"side"           binding:"required"`
		Amount        string `json:"amount"         binding:"required"`
		ExpectedPrice string `json:"expected_price"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	marketID, err := uuid.Parse(body.MarketID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market_id format")
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	// expected_price is optional; zero disables the slippage guard.
	expectedPrice := decimal.Zero
	if body.ExpectedPrice != "" {
		expectedPrice, err = decimal.NewFromString(body.ExpectedPrice)
		if err != nil || expectedPrice.IsNegative() {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE", "expected_price must be a non-negative decimal string")
			return
		}
	}

	req := domain.TradeRequest{
		UserID:        userID,
		MarketID:      marketID,
		Side:          pricing.Side(body.Side),
		Amount:        amount,
		ExpectedPrice: expectedPrice,
	}

	result, err := h.tradeSvc.ExecuteTrade(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err, "could not execute trade")
		return
	}
	respondSuccess(c, http.StatusCreated, result)
}

// Sell godoc
// POST /api/trades/sell [JWT]
// Body: {"market_id":"uuid","side":"YES","shares":"25.5","expected_price":"0.6000"}
func (h *TradeHandler) Sell(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		MarketID      string `json:"market_id"      binding:"required"`
		Side          string `json:"side"           binding:"required"`
		Shares        string `json:"shares"         binding:"required"`
		ExpectedPrice string `json:"expected_price"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	marketID, err := uuid.Parse(body.MarketID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market_id format")
		return
	}

	shares, err := decimal.NewFromString(body.Shares)
	if err != nil || !shares.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "shares must be a positive decimal string")
		return
	}

	expectedPrice := decimal.Zero
	if body.ExpectedPrice != "" {
		expectedPrice, err = decimal.NewFromString(body.ExpectedPrice)
		if err != nil || expectedPrice.IsNegative() {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PRICE", "expected_price must be a non-negative decimal string")
			return
		}
	}

	req := domain.SellRequest{
		UserID:        userID,
		MarketID:      marketID,
		Side:          pricing.Side(body.Side),
		Shares:        shares,
		ExpectedPrice: expectedPrice,
	}

	result, err := h.tradeSvc.SellShares(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err, "could not sell shares")
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// Quote godoc
// GET /api/markets/:id/quote?side=YES&amount=50.00
// Public read-only preview; does not touch the order book state.
func (h *TradeHandler) Quote(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market id")
		return
	}

	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || !amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	quote, err := h.tradeSvc.QuoteTrade(c.Request.Context(), marketID, pricing.Side(c.Query("side")), amount)
	if err != nil {
		respondDomainError(c, err, "could not quote trade")
		return
	}
	respondSuccess(c, http.StatusOK, quote)
}

// GetMyPositions godoc
// GET /api/positions/my?page=1&limit=20 [JWT]
func (h *TradeHandler) GetMyPositions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	positions, err := h.tradeSvc.GetMyPositions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch positions")
		return
	}
	respondList(c, positions, len(positions), page, limit)
}
