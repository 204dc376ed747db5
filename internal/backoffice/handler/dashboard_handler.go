package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oddsmith/peerbet/internal/repository"
	"github.com/oddsmith/peerbet/internal/ws"
	"github.com/shopspring/decimal"
)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	marketRepo *repository.MarketRepository
	walletRepo *repository.WalletRepository
	hub        *ws.Hub
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	marketRepo *repository.MarketRepository,
	walletRepo *repository.WalletRepository,
	hub *ws.Hub,
) *DashboardHandler {
	return &DashboardHandler{
		marketRepo: marketRepo,
		walletRepo: walletRepo,
		hub:        hub,
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	// ── Market counts by status ──────────────────────────────────────────────
	counts, err := h.marketRepo.CountByStatus(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	// ── Money aggregates ─────────────────────────────────────────────────────
	var ledgerBalance, userBalance, pools, bonds decimal.Decimal
	ledgerBalance, _ = h.walletRepo.LedgerBalance(ctx)
	userBalance, _ = h.walletRepo.TotalUserBalance(ctx)
	pools, _ = h.walletRepo.TotalLiquidityPools(ctx)
	bonds, _ = h.walletRepo.TotalActiveBonds(ctx)

	// ── WS connections ────────────────────────────────────────────────────────
	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":          time.Now().UTC(),
		"market_counts":      counts,
		"platform_revenue":   ledgerBalance,
		"total_user_balance": userBalance,
		"total_pools":        pools,
		"total_active_bonds": bonds,
		"ws_connections":     wsConnections,
	})
}
