package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oddsmith/peerbet/internal/api/handler"
	"github.com/oddsmith/peerbet/internal/api/middleware"
	"github.com/oddsmith/peerbet/internal/config"
	"github.com/oddsmith/peerbet/internal/repository"
	"github.com/oddsmith/peerbet/internal/service"
	"github.com/oddsmith/peerbet/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc       *service.AuthService
	MarketSvc     *service.MarketService
	TradeSvc      *service.TradeService
	SettlementSvc *service.SettlementService
	WalletRepo    *repository.WalletRepository
	Hub           *ws.Hub
	Cfg           *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc, deps.WalletRepo)
	marketH := handler.NewMarketHandler(deps.MarketSvc)
	tradeH := handler.NewTradeHandler(deps.TradeSvc)
	settlementH := handler.NewSettlementHandler(deps.SettlementSvc)
	walletH := handler.NewWalletHandler(deps.WalletRepo)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	rl := deps.Cfg.RateLimit
	authRL := middleware.RateLimitMiddleware(rl.RequestsPerSecond, rl.Burst)
	tradeRL := middleware.RateLimitMiddleware(rl.RequestsPerSecond*3, rl.Burst*3)

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		// ── Markets (public reads) ───────────────────────────────────────────
		markets := api.Group("/markets")
		{
			markets.GET("", marketH.ListMarkets)
			markets.GET("/:id", marketH.GetByID)
			markets.GET("/:id/odds", marketH.GetOdds)
			markets.GET("/:id/quote", tradeH.Quote)
			markets.GET("/:id/settlement", settlementH.Status)
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Profile
			authed.GET("/me", userH.Me)

			// Market creation
			authed.POST("/markets", marketH.CreateMarket)

			// Trading
			trades := authed.Group("/trades")
			trades.Use(tradeRL)
			{
				trades.POST("", tradeH.Buy)
				trades.POST("/sell", tradeH.Sell)
			}
			authed.GET("/positions/my", tradeH.GetMyPositions)

			// Settlement lifecycle
			authed.POST("/markets/:id/settlement", settlementH.Initiate)
			authed.POST("/markets/:id/settlement/contest", settlementH.Contest)
			authed.POST("/contests/:id/vote", settlementH.Vote)

			// Wallet
			wallet := authed.Group("/wallet")
			{
				wallet.GET("/balance", walletH.GetBalance)
				wallet.GET("/transactions", walletH.GetTransactions)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In DEBUG mode all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://peerbet.io":     true,
				"https://www.peerbet.io": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
