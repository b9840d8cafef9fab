package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet Model. Balance is a projection of the wallet's transaction log.
type Wallet struct {
	ID        uint            `gorm:"primaryKey"`                            // Primary key
	UserID    uint            `gorm:"uniqueIndex"`                           // Foreign key to User
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0"` // Wallet balance
	CreatedAt time.Time
	UpdatedAt time.Time
}
