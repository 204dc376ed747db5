package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oddsmith/peerbet/internal/repository"
	"github.com/oddsmith/peerbet/internal/service"
)

// SettlementAdminHandler serves /admin/settlements endpoints: the queue of
// disputes awaiting resolution and a manual trigger for the reconcile pass.
type SettlementAdminHandler struct {
	settlementSvc *service.SettlementService
	marketRepo    *repository.MarketRepository
	bondRepo      *repository.BondRepository
}

// NewSettlementAdminHandler creates a SettlementAdminHandler.
func NewSettlementAdminHandler(
	settlementSvc *service.SettlementService,
	marketRepo *repository.MarketRepository,
	bondRepo *repository.BondRepository,
) *SettlementAdminHandler {
	return &SettlementAdminHandler{
		settlementSvc: settlementSvc,
		marketRepo:    marketRepo,
		bondRepo:      bondRepo,
	}
}

// Due godoc
// GET /admin/settlements/due
// Lists markets whose contest or vote window has elapsed and are waiting for
// the next reconcile pass.
func (h *SettlementAdminHandler) Due(c *gin.Context) {
	markets, err := h.marketRepo.GetDueSettlements(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"count":   len(markets),
		"markets": markets,
	})
}

// Run godoc
// POST /admin/settlements/run
// Kicks a reconcile pass immediately instead of waiting for the scheduler.
func (h *SettlementAdminHandler) Run(c *gin.Context) {
	if err := h.settlementSvc.ResolveDueSettlements(c.Request.Context(), time.Now().UTC()); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "completed"})
}

// Detail godoc
// GET /admin/settlements/:id
// Full settlement state for one market, including the vote roll for an open
// or resolved contest.
func (h *SettlementAdminHandler) Detail(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	ctx := c.Request.Context()
	view, err := h.settlementSvc.GetSettlementStatus(ctx, marketID)
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		return
	}

	// Include the full vote roll when a contest exists; the public view only
	// exposes the tallies.
	var votes interface{}
	if view.ContestBond != nil {
		votes, _ = h.bondRepo.GetVotesByContest(ctx, view.ContestBond.ID)
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"settlement": view,
		"votes":      votes,
	})
}
