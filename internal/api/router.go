package api

import (
	"zoin_economy/internal/admin"      // Balance adjustments
	"zoin_economy/internal/fraud"      // Score validation
	"zoin_economy/internal/ledger"     // Wallet ledger
	"zoin_economy/internal/market"     // Store purchases
	"zoin_economy/internal/middleware" // Custom package for middleware
	"zoin_economy/internal/playlimit"  // Play quota
	"zoin_economy/internal/rewards"    // Monthly settlement
	"zoin_economy/internal/scheduler"  // Scheduled tasks

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the services the HTTP surface is built on
type Deps struct {
	DB        *gorm.DB             // Database handle
	Redis     *redis.Client        // Read cache, nil disables caching
	JWTSecret string               // Session token key
	Ledger    *ledger.Ledger       // Balance ledger
	Gate      *playlimit.Gate      // Play quota gate
	Guard     *fraud.Guard         // Score submission gate
	Adjuster  *admin.Adjuster      // Operator adjustments
	Settler   *rewards.Settler     // Monthly settlement
	Market    *market.Market       // Store
	Scheduler *scheduler.Scheduler // Task audit log
}

// Register mounts every route on r
func Register(r *gin.Engine, d Deps) {
	// Auth routes
	r.POST("/user", RegisterHandler(d.DB, d.Ledger))       // Registration endpoint
	r.POST("/user/login", LoginHandler(d.DB, d.JWTSecret)) // Login endpoint

	auth := middleware.JWTAuthMiddleware(d.JWTSecret)

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet", auth)
	walletGroup.GET("", GetWalletHandler(d.Ledger, d.Redis))                          // Get wallet endpoint
	walletGroup.GET("/transactions", GetTransactionHistoryHandler(d.Ledger, d.Redis)) // Transaction history endpoint

	// Gameplay routes (protected by JWT)
	gameGroup := r.Group("/games", auth)
	gameGroup.GET("/plays", PlayStatusHandler(d.Gate))     // Remaining plays
	gameGroup.POST("/scores", SubmitScoreHandler(d.Guard)) // Score submission

	// Store routes (protected by JWT)
	r.POST("/market/extra-games", auth, BuyExtraGamesHandler(d.Market))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin", auth, middleware.AdminOnlyMiddleware(d.DB))
	adminGroup.GET("/users", ListUsersHandler(d.DB, d.Redis))               // List users endpoint
	adminGroup.GET("/transactions", ListTransactionsHandler(d.DB))          // List transactions endpoint
	adminGroup.POST("/users/:id/balance", AdjustBalanceHandler(d.Adjuster)) // Balance adjustment
	adminGroup.POST("/users/:id/unfreeze", UnfreezeHandler(d.Guard))        // Clear a freeze after review
	adminGroup.GET("/audit/:id", AuditHandler(d.Ledger))                    // Ledger integrity audit
	adminGroup.GET("/settlements", ListSettlementsHandler(d.Settler))       // Settlement history
	adminGroup.POST("/settlements", SettleHandler(d.Settler))               // Manual settlement
	adminGroup.GET("/tasks/:name/last", LastTaskRunHandler(d.Scheduler))    // Last scheduled run
}
