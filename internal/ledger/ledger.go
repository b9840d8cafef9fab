// Package ledger owns wallet balances and the append-only signed
// transaction log. It is the only writer of Wallet.Balance.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zoin_economy/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scale is the number of fractional digits kept for amounts.
const Scale = 8

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrZeroAmount        = errors.New("amount must not be zero")
)

// Invalidator drops cached views of a wallet once a change is committed.
type Invalidator interface {
	InvalidateWallet(ctx context.Context, userID uint)
}

// Ledger applies balance deltas and records one signed transaction per change.
type Ledger struct {
	db     *gorm.DB
	signer *Signer
	cache  Invalidator
	now    func() time.Time
}

// New returns a Ledger writing through db.
func New(db *gorm.DB, signer *Signer) *Ledger {
	return &Ledger{db: db, signer: signer, now: time.Now}
}

// UseCache registers the cache invalidated after every committed delta.
func (l *Ledger) UseCache(c Invalidator) {
	l.cache = c
}

// Signer returns the signer used for new entries.
func (l *Ledger) Signer() *Signer {
	return l.signer
}

// ApplyDelta changes the user's balance by amount in its own database
// transaction. The balance update and the log entry commit together.
func (l *Ledger) ApplyDelta(ctx context.Context, userID uint, amount decimal.Decimal, txType domain.TransactionType, description string) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := l.ApplyDeltaTx(tx, userID, amount, txType, description)
		if err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,          // Target user
			"amount":  amount.String(), // Requested delta
			"type":    txType,          // Transaction type
			"error":   err.Error(),     // Failure reason
		}).Error("Ledger delta rejected")
		return nil, err
	}
	l.Invalidate(ctx, userID)
	logrus.WithFields(logrus.Fields{
		"user_id": userID,                  // Target user
		"amount":  amount.String(),         // Applied delta
		"type":    txType,                  // Transaction type
		"balance": wallet.Balance.String(), // Balance after the change
	}).Info("Ledger delta applied")
	return wallet, nil
}

// ApplyDeltaTx applies a delta inside a caller-owned transaction so it can
// commit together with other writes. The caller must call Invalidate after
// the transaction commits.
func (l *Ledger) ApplyDeltaTx(tx *gorm.DB, userID uint, amount decimal.Decimal, txType domain.TransactionType, description string) (*domain.Wallet, error) {
	if !txType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, txType)
	}
	amount = amount.Round(Scale)
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}

	wallet, err := l.LockWalletTx(tx, userID)
	if err != nil {
		return nil, err
	}

	newBalance := wallet.Balance.Add(amount)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("%w: balance %s, delta %s", ErrInsufficientFunds, wallet.Balance.String(), amount.String())
	}

	now := l.now().UTC()
	if err := tx.Model(wallet).Updates(map[string]any{"balance": newBalance, "updated_at": now}).Error; err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	millis := now.UnixMilli()
	entry := domain.Transaction{
		WalletID:    wallet.ID,
		Amount:      amount,
		Type:        txType,
		Description: truncate(description, 255),
		Signature:   l.signer.Sign(userID, amount, txType, millis),
		CreatedAt:   millis,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	wallet.Balance = newBalance
	wallet.UpdatedAt = now
	return wallet, nil
}

// LockWalletTx reads the user's wallet holding its row lock until tx ends,
// so concurrent deltas serialize behind it.
func (l *Ledger) LockWalletTx(tx *gorm.DB, userID uint) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrWalletNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return &wallet, nil
}

// Transaction runs fn in one database transaction. Callers combining
// LockWalletTx and ApplyDeltaTx call Invalidate after it returns.
func (l *Ledger) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return l.db.WithContext(ctx).Transaction(fn)
}

// Invalidate drops cached views of the user's wallet.
func (l *Ledger) Invalidate(ctx context.Context, userID uint) {
	if l.cache != nil {
		l.cache.InvalidateWallet(ctx, userID)
	}
}

// CreateWalletTx opens the zero-balance wallet of a new account.
func (l *Ledger) CreateWalletTx(tx *gorm.DB, userID uint) (*domain.Wallet, error) {
	wallet := domain.Wallet{UserID: userID, Balance: decimal.Zero}
	if err := tx.Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return &wallet, nil
}

// GetWallet returns the user's wallet.
func (l *Ledger) GetWallet(ctx context.Context, userID uint) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrWalletNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return &wallet, nil
}

// History returns one page of the user's transactions, newest first, and the total count.
func (l *Ledger) History(ctx context.Context, userID uint, page, pageSize int) ([]domain.Transaction, int64, error) {
	wallet, err := l.GetWallet(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	query := l.db.WithContext(ctx).Model(&domain.Transaction{}).Where("wallet_id = ?", wallet.ID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	var txs []domain.Transaction
	err = query.Order("created_at desc").Order("id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("fetch transactions: %w", err)
	}
	return txs, total, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
