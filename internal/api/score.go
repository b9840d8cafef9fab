package api

import (
	"net/http"                         // HTTP status codes
	"zoin_economy/internal/fraud"      // Score validation
	"zoin_economy/internal/market"     // Store purchases
	"zoin_economy/internal/middleware" // Authenticated user

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Fixed-point amounts
)

// ScoreRequest is one completed round reported by a game client
type ScoreRequest struct {
	Amount *int64           `json:"amount" binding:"required"` // Raw points
	Game   string           `json:"game" binding:"required"`   // Game identifier
	Zoins  *decimal.Decimal `json:"zoins"`                     // Currency earned in the round
}

// SubmitScoreHandler validates a round and records the score
func SubmitScoreHandler(guard *fraud.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req ScoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		zoins := decimal.Zero
		if req.Zoins != nil {
			zoins = *req.Zoins
		}
		score, err := guard.SubmitScore(c.Request.Context(), fraud.Submission{
			UserID: userID,
			Amount: *req.Amount,
			Game:   req.Game,
			Zoins:  zoins,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"score": score})
	}
}

// PurchaseRequest buys packs of extra games
type PurchaseRequest struct {
	Packs int `json:"packs" binding:"required,gt=0"` // Number of packs
}

// BuyExtraGamesHandler sells bonus plays for Zoins
func BuyExtraGamesHandler(m *market.Market) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			unauthorized(c)
			return
		}
		var req PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		wallet, err := m.BuyExtraGames(c.Request.Context(), userID, req.Packs)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Purchase successful", "wallet": wallet})
	}
}
