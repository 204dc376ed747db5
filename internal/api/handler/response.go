package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oddsmith/peerbet/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondDomainError maps a domain error to the appropriate HTTP status and
// error code.  fallback is the message used for unclassified (internal) errors
// so raw database errors never leak to clients.
func respondDomainError(c *gin.Context, err error, fallback string) {
	var slip *domain.SlippageError
	switch {
	case errors.Is(err, domain.ErrRateLimitExceeded):
		respondError(c, http.StatusTooManyRequests, "ERR_RATE_LIMITED", err.Error())
	case errors.As(err, &slip):
		// Carries the realized price so the client can re-quote and retry.
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"success":        false,
			"error":          slip.Error(),
			"code":           "ERR_SLIPPAGE",
			"realized_price": slip.RealizedPrice,
		})
	case errors.Is(err, domain.ErrInsufficientBalance):
		respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", domain.ErrInsufficientBalance.Error())
	case errors.Is(err, domain.ErrInsufficientShares):
		respondError(c, http.StatusConflict, "ERR_INSUFFICIENT_SHARES", domain.ErrInsufficientShares.Error())
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "ERR_CONFLICT", err.Error())
	case domain.IsAuthError(err):
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", fallback)
	}
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}
