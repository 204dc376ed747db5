package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oddsmith/peerbet/internal/api/middleware"
	"github.com/oddsmith/peerbet/internal/service"
)

// SettlementHandler serves the dispute-settlement lifecycle endpoints:
// outcome declaration, contest, voting, and status.
type SettlementHandler struct {
	settlementSvc *service.SettlementService
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlementSvc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Initiate godoc
// POST /api/markets/:id/settlement [JWT]
// Body: {"outcome":true}
// Only the market creator may call this; the creator bond is escrowed.
func (h *SettlementHandler) Initiate(c *gin.Context) {
	userID := middleware.GetUserID(c)

	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market id")
		return
	}

	var body struct {
		Outcome *bool `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	bond, err := h.settlementSvc.InitiateSettlement(c.Request.Context(), marketID, userID, *body.Outcome)
	if err != nil {
		respondDomainError(c, err, "could not initiate settlement")
		return
	}
	respondSuccess(c, http.StatusCreated, bond)
}

// Contest godoc
// POST /api/markets/:id/settlement/contest [JWT]
// Any position holder other than the creator may dispute the declared outcome
// by escrowing the contest bond before the contest deadline.
func (h *SettlementHandler) Contest(c *gin.Context) {
	userID := middleware.GetUserID(c)

	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market id")
		return
	}

	bond, err := h.settlementSvc.ContestSettlement(c.Request.Context(), marketID, userID)
	if err != nil {
		respondDomainError(c, err, "could not contest settlement")
		return
	}
	respondSuccess(c, http.StatusCreated, bond)
}

// Vote godoc
// POST /api/contests/:id/vote [JWT]
// Body: {"outcome":false}
func (h *SettlementHandler) Vote(c *gin.Context) {
	userID := middleware.GetUserID(c)

	contestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_CONTEST_ID", "invalid contest id")
		return
	}

	var body struct {
		Outcome *bool `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	vote, err := h.settlementSvc.SubmitVote(c.Request.Context(), contestID, userID, *body.Outcome)
	if err != nil {
		respondDomainError(c, err, "could not submit vote")
		return
	}
	respondSuccess(c, http.StatusCreated, vote)
}

// Status godoc
// GET /api/markets/:id/settlement
// Public view of the settlement state machine for one market.
func (h *SettlementHandler) Status(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market id")
		return
	}

	view, err := h.settlementSvc.GetSettlementStatus(c.Request.Context(), marketID)
	if err != nil {
		respondDomainError(c, err, "could not fetch settlement status")
		return
	}
	respondSuccess(c, http.StatusOK, view)
}
