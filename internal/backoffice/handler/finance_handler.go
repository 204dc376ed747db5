package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oddsmith/peerbet/internal/repository"
)

// FinanceHandler serves /admin/finance endpoints: the platform ledger and the
// money-conservation reconciliation report.
type FinanceHandler struct {
	walletRepo *repository.WalletRepository
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(walletRepo *repository.WalletRepository) *FinanceHandler {
	return &FinanceHandler{walletRepo: walletRepo}
}

// Ledger godoc
// GET /admin/finance/ledger?type=trade_fee&page=1&limit=50
func (h *FinanceHandler) Ledger(c *gin.Context) {
	entryType := c.DefaultQuery("type", "")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	entries, err := h.walletRepo.GetLedgerEntries(c.Request.Context(), entryType, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// Report godoc
// GET /admin/finance/report
// Reconciliation: all money in the system lives in exactly one of user
// wallets, market liquidity pools, escrowed bonds, or the platform ledger.
// The sum of those buckets must equal the total ever deposited; a drifting
// total is the first sign of a conservation bug.
func (h *FinanceHandler) Report(c *gin.Context) {
	ctx := c.Request.Context()

	userBalance, err := h.walletRepo.TotalUserBalance(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	pools, err := h.walletRepo.TotalLiquidityPools(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	bonds, err := h.walletRepo.TotalActiveBonds(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	ledger, err := h.walletRepo.LedgerBalance(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	total := userBalance.Add(pools).Add(bonds).Add(ledger)

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":          time.Now().UTC(),
		"user_balances":      userBalance,
		"liquidity_pools":    pools,
		"active_bonds":       bonds,
		"platform_ledger":    ledger,
		"total_system_money": total,
	})
}
