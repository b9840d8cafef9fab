package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes

	"zoin_economy/internal/admin"     // Admin adjustment errors
	"zoin_economy/internal/fraud"     // Fraud guard errors
	"zoin_economy/internal/ledger"    // Ledger errors
	"zoin_economy/internal/market"    // Market errors
	"zoin_economy/internal/playlimit" // Play limit errors
	"zoin_economy/internal/rewards"   // Settlement errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// frozenMessage is shown to players whose account has been locked
const frozenMessage = "Security alert: unusual activity was detected and this account has been frozen pending manual review"

// errorMapping pairs a domain error with its HTTP status, code and public message
type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{market.ErrPurchaseFailed, http.StatusBadGateway, "PURCHASE_REFUNDED", "Purchase could not be completed and was refunded"},
	{fraud.ErrAccountFrozen, http.StatusForbidden, "ACCOUNT_FROZEN", frozenMessage},
	{playlimit.ErrDailyLimitReached, http.StatusTooManyRequests, "DAILY_LIMIT_REACHED", "No plays left today"},
	{ledger.ErrInsufficientFunds, http.StatusBadRequest, "INSUFFICIENT_FUNDS", "Insufficient funds"},
	{ledger.ErrWalletNotFound, http.StatusInternalServerError, "WALLET_NOT_FOUND", "Wallet not found"},
	{ledger.ErrZeroAmount, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must not be zero"},
	{ledger.ErrInvalidType, http.StatusBadRequest, "INVALID_TYPE", "Invalid transaction type"},
	{playlimit.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{fraud.ErrInvalidSubmission, http.StatusBadRequest, "INVALID_SUBMISSION", "Invalid score submission"},
	{admin.ErrInvalidAdjustment, http.StatusBadRequest, "INVALID_ADJUSTMENT", "Invalid adjustment"},
	{rewards.ErrPeriodAlreadySettled, http.StatusConflict, "PERIOD_ALREADY_SETTLED", "Period already settled"},
	{rewards.ErrPeriodNotClosed, http.StatusBadRequest, "PERIOD_NOT_CLOSED", "Only months that have ended can be settled"},
	{market.ErrInvalidQty, http.StatusBadRequest, "INVALID_QUANTITY", "Quantity must be positive"},
	{market.ErrInvalidPrice, http.StatusBadRequest, "INVALID_PRICE", "Price must be positive"},
}

// respondError writes the client-visible failure for err
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logrus.WithFields(logrus.Fields{"path": c.FullPath(), "error": err.Error()}).Error("Request failed")
			}
			c.JSON(m.status, gin.H{"error": m.message, "code": m.code})
			return
		}
	}
	logrus.WithFields(logrus.Fields{"path": c.FullPath(), "error": err.Error()}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "code": "INTERNAL"})
}

// badRequest writes a validation failure
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "INVALID_REQUEST"})
}

// unauthorized writes a missing-session failure
func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "UNAUTHORIZED"})
}
