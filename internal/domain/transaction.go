package domain

import "github.com/shopspring/decimal"

// TransactionType enumerates the kinds of balance change
type TransactionType string

const (
	TxDeposit         TransactionType = "DEPOSIT"
	TxWithdrawal      TransactionType = "WITHDRAWAL"
	TxPayment         TransactionType = "PAYMENT"
	TxRefund          TransactionType = "REFUND"
	TxGameReward      TransactionType = "GAME_REWARD"
	TxAdminAdjustment TransactionType = "ADMIN_ADJUSTMENT"
)

// Valid reports whether t is one of the enumerated kinds
func (t TransactionType) Valid() bool {
	switch t {
	case TxDeposit, TxWithdrawal, TxPayment, TxRefund, TxGameReward, TxAdminAdjustment:
		return true
	}
	return false
}

// Transaction Model. Rows are append-only.
type Transaction struct {
	ID          uint            `gorm:"primaryKey"`                  // Primary key
	WalletID    uint            `gorm:"index;not null"`              // Foreign key to Wallet
	Amount      decimal.Decimal `gorm:"type:decimal(20,8);not null"` // Signed amount
	Type        TransactionType `gorm:"size:32;not null;index"`      // Transaction type
	Description string          `gorm:"size:255"`                    // Human readable reason
	Signature   string          `gorm:"size:96;not null"`            // "<unixMillis>:<hex hmac>"
	CreatedAt   int64           `gorm:"autoCreateTime:milli"`        // Timestamp of creation in milliseconds
}
