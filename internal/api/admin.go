package api

import (
	"errors"                           // Error inspection
	"net/http"                         // HTTP status codes
	"strconv"                          // String conversion
	"strings"                          // String manipulation
	"time"                             // Date filters
	"zoin_economy/internal/admin"      // Balance adjustments
	"zoin_economy/internal/domain"     // Importing domain models
	"zoin_economy/internal/fraud"      // Freeze review
	"zoin_economy/internal/ledger"     // Integrity audit
	"zoin_economy/internal/middleware" // Acting operator
	"zoin_economy/internal/rewards"    // Settlements
	"zoin_economy/internal/scheduler"  // Task audit log
	"zoin_economy/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Fixed-point amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID             uint              `json:"id"`               // User ID
	Username       string            `json:"username"`         // Username
	Role           string            `json:"role"`             // User role
	Membership     domain.Membership `json:"membership"`       // Membership tier
	DailyGamesLeft int               `json:"daily_games_left"` // Plays left today
	ExtraGames     int               `json:"extra_games"`      // Purchased plays
	IsFrozen       bool              `json:"is_frozen"`        // Awaiting review
	Wallet         domain.Wallet     `json:"wallet"`           // Associated wallet
}

// usersPage is the cached shape of one page of users
type usersPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
}

// ListUsersHandler returns all users with their wallet and quota info
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pagination(c)
		frozen := c.Query("frozen") == "true" // Only accounts awaiting review
		cacheKey := utils.AdminUsersKey(page, pageSize, frozen)
		var cached usersPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"users":       cached.Users,      // List of users
				"page":        cached.Page,       // Current page
				"page_size":   cached.PageSize,   // Page size
				"total":       cached.Total,      // Total number of users
				"total_pages": cached.TotalPages, // Total pages
				"cached":      true,              // Indicate response is from cache
			})
			return
		}
		query := db.WithContext(ctx).Model(&domain.User{})
		if frozen {
			query = query.Where("is_frozen = ?", true)
		}
		var total int64 // Total user count
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}
		var users []domain.User // Slice to hold users
		if err := query.Preload("Wallet").Order("id").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
			respondError(c, err)
			return
		}
		resp := usersPage{
			Users:      make([]UserAdminResponse, len(users)),
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		}
		for i, u := range users {
			resp.Users[i] = UserAdminResponse{
				ID:             u.ID,
				Username:       u.Username,
				Role:           u.Role,
				Membership:     u.Membership,
				DailyGamesLeft: u.DailyGamesLeft,
				ExtraGames:     u.ExtraGames,
				IsFrozen:       u.IsFrozen,
				Wallet:         u.Wallet,
			}
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL) // Cache the response for future requests
		c.JSON(http.StatusOK, gin.H{
			"users":       resp.Users,
			"page":        resp.Page,
			"page_size":   resp.PageSize,
			"total":       resp.Total,
			"total_pages": resp.TotalPages,
			"cached":      false,
		})
	}
}

// ListTransactionsHandler returns ledger entries, optionally filtered by user, type or date (RFC3339)
func ListTransactionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize := pagination(c)
		query := db.WithContext(c.Request.Context()).Model(&domain.Transaction{})
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("wallet_id IN (?)", db.Model(&domain.Wallet{}).Select("id").Where("user_id = ?", userID))
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", strings.ToUpper(txType)) // Filter by transaction type
		}
		for param, op := range map[string]string{"from": ">=", "to": "<="} {
			raw := c.Query(param)
			if raw == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				badRequest(c, "Invalid "+param+" date, expected RFC3339")
				return
			}
			query = query.Where("created_at "+op+" ?", t.UnixMilli())
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}
		var txs []domain.Transaction
		if err := query.Order("created_at desc").Order("id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&txs).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"transactions": txs,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages(total, pageSize),
		})
	}
}

// AdjustRequest is an operator balance command
type AdjustRequest struct {
	Amount *decimal.Decimal `json:"amount"`                  // Amount to add or target balance
	Mode   string           `json:"mode" binding:"required"` // "add" or "set"
}

// AdjustBalanceHandler applies an operator "add" or "set" command to a user's wallet
func AdjustBalanceHandler(adj *admin.Adjuster) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, ok := pathUserID(c)
		if !ok {
			return
		}
		var req AdjustRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
			badRequest(c, "Invalid request")
			return
		}
		mode, err := admin.ParseMode(req.Mode)
		if err != nil {
			respondError(c, err)
			return
		}
		cmd := admin.Add(*req.Amount)
		if mode == admin.ModeSet {
			cmd = admin.SetTo(*req.Amount)
		}
		wallet, err := adj.AdjustBalance(c.Request.Context(), targetID, cmd)
		if err != nil {
			respondError(c, err)
			return
		}
		adminID, _ := c.Get(middleware.AdminIDKey)
		logrus.WithFields(logrus.Fields{"admin_id": adminID, "user_id": targetID, "mode": mode}).Info("Admin adjustment requested")
		c.JSON(http.StatusOK, gin.H{"wallet": wallet})
	}
}

// UnfreezeHandler clears an account freeze after manual review
func UnfreezeHandler(guard *fraud.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, ok := pathUserID(c)
		if !ok {
			return
		}
		adminID := c.GetUint(middleware.AdminIDKey)
		if err := guard.Unfreeze(c.Request.Context(), targetID, adminID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Account unfrozen"})
	}
}

// AuditHandler replays one wallet's transaction log and verifies its signatures
func AuditHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, ok := pathUserID(c)
		if !ok {
			return
		}
		report, err := l.Audit(c.Request.Context(), targetID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"audit": report})
	}
}

// SettleRequest triggers a settlement for one game and month
type SettleRequest struct {
	Game   string `json:"game" binding:"required"`   // Game identifier
	Period string `json:"period" binding:"required"` // YYYY-MM
}

// SettleHandler runs a monthly settlement on demand; a period already settled is refused
func SettleHandler(settler *rewards.Settler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SettleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		period, err := rewards.ParsePeriod(req.Period, settler.Location())
		if err != nil {
			badRequest(c, "Invalid period, expected YYYY-MM")
			return
		}
		res, err := settler.Settle(c.Request.Context(), strings.TrimSpace(req.Game), period)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"settlement": res, "skipped": len(res.Failures)})
	}
}

// ListSettlementsHandler lists recorded settlements, optionally for one game
func ListSettlementsHandler(settler *rewards.Settler) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs, err := settler.Runs(c.Request.Context(), c.Query("game"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"settlements": runs})
	}
}

// LastTaskRunHandler returns the latest recorded run of a scheduled task
func LastTaskRunHandler(s *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := s.LastRun(c.Request.Context(), c.Param("name"))
		if errors.Is(err, scheduler.ErrNeverRun) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NEVER_RUN"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run})
	}
}

// pathUserID parses the :id path parameter, writing a 400 when it is invalid
func pathUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid user id")
		return 0, false
	}
	return uint(id), true
}
