package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/repository"
	"github.com/oddsmith/peerbet/internal/service"
)

// MarketAdminHandler serves /admin/markets endpoints.
type MarketAdminHandler struct {
	marketSvc     *service.MarketService
	settlementSvc *service.SettlementService
	positionRepo  *repository.PositionRepository
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(
	marketSvc *service.MarketService,
	settlementSvc *service.SettlementService,
	positionRepo *repository.PositionRepository,
) *MarketAdminHandler {
	return &MarketAdminHandler{
		marketSvc:     marketSvc,
		settlementSvc: settlementSvc,
		positionRepo:  positionRepo,
	}
}

// List godoc
// GET /admin/markets?status=active&page=1&limit=50
func (h *MarketAdminHandler) List(c *gin.Context) {
	status := c.Query("status")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	markets, total, err := h.marketSvc.ListMarkets(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, markets, total, page, limit)
}

// Detail godoc
// GET /admin/markets/:id
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	ctx := c.Request.Context()
	market, err := h.marketSvc.GetMarket(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	positions, _ := h.positionRepo.GetOpenByMarket(ctx, id)
	settlement, _ := h.settlementSvc.GetSettlementStatus(ctx, id)

	respondSuccess(c, http.StatusOK, gin.H{
		"market":     market,
		"positions":  positions,
		"settlement": settlement,
	})
}

// Suspend godoc
// POST /admin/markets/:id/suspend
func (h *MarketAdminHandler) Suspend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if err = h.marketSvc.SuspendMarket(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "suspended", "market_id": id, "reason": body.Reason})
}

// Resume godoc
// POST /admin/markets/:id/resume
func (h *MarketAdminHandler) Resume(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	if err = h.marketSvc.ResumeMarket(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "active", "market_id": id})
}

// Cancel godoc
// POST /admin/markets/:id/cancel
// Voids the market: positions refunded at cost basis, dispute bonds returned,
// pool remainder back to the creator.
func (h *MarketAdminHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	if err = h.settlementSvc.CancelMarket(c.Request.Context(), id); err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "cancelled", "market_id": id, "reason": body.Reason})
}

// Resolve godoc
// POST /admin/markets/:id/resolve
// Body: {"outcome": true}
// Oracle override: bypasses the contest/vote flow, returns any escrowed
// dispute bonds untouched, and pays out at the supplied outcome.
func (h *MarketAdminHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	var body struct {
		Outcome *bool `json:"outcome" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	if err = h.settlementSvc.ResolveFromOracle(c.Request.Context(), id, *body.Outcome); err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "settled", "market_id": id, "outcome": *body.Outcome})
}
