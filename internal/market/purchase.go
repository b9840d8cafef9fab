// Package market sells store items for Zoins. A purchase debits the
// wallet first and refunds it if the item cannot be delivered.
package market

import (
	"context"
	"errors"
	"fmt"

	"zoin_economy/internal/domain"
	"zoin_economy/internal/ledger"
	"zoin_economy/internal/playlimit"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidPrice   = errors.New("price must be positive")
	ErrInvalidQty     = errors.New("quantity must be positive")
	ErrPurchaseFailed = errors.New("purchase failed and was refunded")
)

// Fulfill delivers a purchased item.
type Fulfill func(ctx context.Context) error

// Market runs store purchases against the ledger.
type Market struct {
	ledger    *ledger.Ledger
	gate      *playlimit.Gate
	packSize  int
	packPrice decimal.Decimal
}

// New returns a Market selling extra-game packs of packSize plays at packPrice.
func New(l *ledger.Ledger, gate *playlimit.Gate, packSize int, packPrice decimal.Decimal) *Market {
	return &Market{ledger: l, gate: gate, packSize: packSize, packPrice: packPrice}
}

// Purchase debits price as a PAYMENT, then runs fulfill. When fulfill
// fails a compensating REFUND is applied before the error is returned.
func (m *Market) Purchase(ctx context.Context, userID uint, price decimal.Decimal, description string, fulfill Fulfill) (*domain.Wallet, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	wallet, err := m.ledger.ApplyDelta(ctx, userID, price.Neg(), domain.TxPayment, description)
	if err != nil {
		return nil, err
	}
	ferr := fulfill(ctx)
	if ferr == nil {
		return wallet, nil
	}

	// The refund must land even if the request was cancelled
	refundCtx := context.WithoutCancel(ctx)
	if _, rerr := m.ledger.ApplyDelta(refundCtx, userID, price, domain.TxRefund, "refund: "+description); rerr != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":        userID,         // Buyer
			"amount":         price.String(), // Unrefunded debit
			"fulfill_error":  ferr.Error(),   // Why delivery failed
			"refund_error":   rerr.Error(),   // Why the refund failed
			"security_alert": true,           // Needs reconciliation
		}).Error("Purchase refund failed")
		return nil, errors.Join(fmt.Errorf("fulfill: %w", ferr), fmt.Errorf("refund: %w", rerr))
	}
	logrus.WithFields(logrus.Fields{
		"user_id": userID,         // Buyer
		"amount":  price.String(), // Refunded amount
		"error":   ferr.Error(),   // Why delivery failed
	}).Warn("Purchase refunded")
	return nil, fmt.Errorf("%w: %w", ErrPurchaseFailed, ferr)
}

// BuyExtraGames sells packs of bonus plays.
func (m *Market) BuyExtraGames(ctx context.Context, userID uint, packs int) (*domain.Wallet, error) {
	if packs <= 0 {
		return nil, ErrInvalidQty
	}
	games := packs * m.packSize
	price := m.packPrice.Mul(decimal.NewFromInt(int64(packs)))
	desc := fmt.Sprintf("%d extra games", games)
	return m.Purchase(ctx, userID, price, desc, func(ctx context.Context) error {
		return m.gate.AddExtraGames(ctx, userID, games)
	})
}
