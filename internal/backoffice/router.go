package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oddsmith/peerbet/internal/backoffice/handler"
	"github.com/oddsmith/peerbet/internal/config"
	"github.com/oddsmith/peerbet/internal/repository"
	"github.com/oddsmith/peerbet/internal/service"
	"github.com/oddsmith/peerbet/internal/ws"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc       *service.AuthService
	MarketSvc     *service.MarketService
	SettlementSvc *service.SettlementService
	UserRepo      *repository.UserRepository
	MarketRepo    *repository.MarketRepository
	PositionRepo  *repository.PositionRepository
	BondRepo      *repository.BondRepository
	WalletRepo    *repository.WalletRepository
	Hub           *ws.Hub
	Cfg           *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine on port 8081.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.MarketRepo, deps.WalletRepo, deps.Hub)
	marketH := handler.NewMarketAdminHandler(deps.MarketSvc, deps.SettlementSvc, deps.PositionRepo)
	settlementH := handler.NewSettlementAdminHandler(deps.SettlementSvc, deps.MarketRepo, deps.BondRepo)
	userH := handler.NewUserAdminHandler(deps.UserRepo, deps.WalletRepo)
	financeH := handler.NewFinanceHandler(deps.WalletRepo)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Markets
		m := admin.Group("/markets")
		{
			m.GET("", marketH.List)
			m.GET("/:id", marketH.Detail)
			m.POST("/:id/suspend", marketH.Suspend)
			m.POST("/:id/resume", marketH.Resume)
			m.POST("/:id/cancel", marketH.Cancel)
			m.POST("/:id/resolve", marketH.Resolve)
		}

		// Settlements
		s := admin.Group("/settlements")
		{
			s.GET("/due", settlementH.Due)
			s.POST("/run", settlementH.Run)
			s.GET("/:id", settlementH.Detail)
		}

		// Users
		u := admin.Group("/users")
		{
			u.GET("", userH.List)
			u.GET("/:id", userH.Detail)
			u.POST("/:id/suspend", userH.Suspend)
			u.POST("/:id/activate", userH.Activate)
			u.POST("/:id/balance", userH.AdjustBalance)
			u.POST("/:id/role", userH.SetRole)
		}

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/ledger", financeH.Ledger)
			fin.GET("/report", financeH.Report)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !allowed[clientIP] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the caller to have a
// backoffice-capable role (admin, finance, ops, readonly).
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// Require at least one backoffice role
		backofficeRoles := map[string]bool{
			"admin":    true,
			"finance":  true,
			"ops":      true,
			"readonly": true,
		}
		if !backofficeRoles[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
