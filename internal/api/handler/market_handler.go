package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oddsmith/peerbet/internal/api/middleware"
	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/service"
	"github.com/shopspring/decimal"
)

// MarketHandler serves market creation and query endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// CreateMarket godoc
// POST /api/markets [JWT]
// Body: {"question":"...","visibility":"public","initial_liquidity":"100","expires_at":"2026-09-01T00:00:00Z"}
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		Question         string    `json:"question"          binding:"required"`
		Visibility       string    `json:"visibility"`
		InitialLiquidity string    `json:"initial_liquidity" binding:"required"`
		ExpiresAt        time.Time `json:"expires_at"        binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	liquidity, err := decimal.NewFromString(body.InitialLiquidity)
	if err != nil || !liquidity.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "initial_liquidity must be a positive decimal string")
		return
	}

	req := domain.CreateMarketRequest{
		CreatorID:        userID,
		Question:         body.Question,
		Visibility:       domain.Visibility(body.Visibility),
		InitialLiquidity: liquidity,
		ExpiresAt:        body.ExpiresAt,
	}

	market, err := h.marketSvc.CreateMarket(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err, "could not create market")
		return
	}
	respondSuccess(c, http.StatusCreated, market)
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	market, err := h.marketSvc.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not fetch market")
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// GetOdds godoc
// GET /api/markets/:id/odds
func (h *MarketHandler) GetOdds(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	odds, err := h.marketSvc.GetOdds(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not fetch odds")
		return
	}
	respondSuccess(c, http.StatusOK, odds)
}

// ListMarkets godoc
// GET /api/markets?status=active&page=1&limit=20
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	status := c.Query("status")
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	markets, total, err := h.marketSvc.ListMarkets(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list markets")
		return
	}
	respondList(c, markets, total, page, limit)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return
}
