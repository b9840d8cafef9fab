package api

import (
	"net/http"                         // HTTP status codes
	"zoin_economy/internal/domain"     // Importing domain models
	"zoin_economy/internal/ledger"     // Ledger reads
	"zoin_economy/internal/middleware" // Authenticated user
	"zoin_economy/internal/playlimit"  // Play allowance
	"zoin_economy/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// historyPage is the cached shape of one page of transaction history
type historyPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
}

// GetWalletHandler returns wallet info for the authenticated user
func GetWalletHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			unauthorized(c)
			return
		}
		ctx := c.Request.Context()
		cacheKey := utils.WalletKey(userID)
		var wallet domain.Wallet
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &wallet); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": true}) // Return cached wallet
			return
		}
		w, err := l.GetWallet(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, w, utils.CacheTTL)  // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": false}) // Return wallet info
	}
}

// GetTransactionHistoryHandler returns the authenticated user's ledger entries, newest first
func GetTransactionHistoryHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			unauthorized(c)
			return
		}
		page, pageSize := pagination(c)
		ctx := c.Request.Context()
		cacheKey := utils.HistoryKey(userID, page, pageSize)
		var cached historyPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions, // Cached transactions
				"page":         cached.Page,         // Current page
				"page_size":    cached.PageSize,     // Page size
				"total":        cached.Total,        // Total transactions
				"total_pages":  cached.TotalPages,   // Total pages
				"cached":       true,                // From cache
			})
			return
		}
		txs, total, err := l.History(ctx, userID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := historyPage{
			Transactions: txs,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   totalPages(total, pageSize),
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL) // Cache the page
		c.JSON(http.StatusOK, gin.H{
			"transactions": resp.Transactions,
			"page":         resp.Page,
			"page_size":    resp.PageSize,
			"total":        resp.Total,
			"total_pages":  resp.TotalPages,
			"cached":       false,
		})
	}
}

// PlayStatusHandler returns the authenticated user's remaining plays. Not
// cached: every submission changes it.
func PlayStatusHandler(gate *playlimit.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			unauthorized(c)
			return
		}
		st, err := gate.Status(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plays": st})
	}
}
