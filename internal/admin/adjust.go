// Package admin turns operator balance commands into a single ledger delta.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zoin_economy/internal/domain"
	"zoin_economy/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrInvalidAdjustment is returned for unknown modes or negative set targets.
var ErrInvalidAdjustment = errors.New("invalid adjustment")

// Mode selects how an adjustment amount is interpreted.
type Mode string

const (
	ModeAdd Mode = "add"
	ModeSet Mode = "set"
)

// ParseMode validates an operator supplied mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAdd, ModeSet:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidAdjustment, s)
}

// Adjustment is either Add(amount) or SetTo(amount).
type Adjustment struct {
	Mode   Mode
	Amount decimal.Decimal
}

// Add adjusts the balance by amount.
func Add(amount decimal.Decimal) Adjustment { return Adjustment{Mode: ModeAdd, Amount: amount} }

// SetTo moves the balance to exactly amount.
func SetTo(amount decimal.Decimal) Adjustment { return Adjustment{Mode: ModeSet, Amount: amount} }

// Descriptions recorded on the ledger entry.
const (
	addDescription = "manual admin adjustment"
	setDescription = "manual admin adjustment (set)"
)

// Adjuster applies operator adjustments through the ledger.
type Adjuster struct {
	ledger *ledger.Ledger
}

// New returns an Adjuster.
func New(l *ledger.Ledger) *Adjuster {
	return &Adjuster{ledger: l}
}

// AdjustBalance resolves adj to one delta and applies it. A set to the
// current balance returns the wallet unchanged and records nothing.
func (a *Adjuster) AdjustBalance(ctx context.Context, userID uint, adj Adjustment) (*domain.Wallet, error) {
	switch adj.Mode {
	case ModeAdd:
		if adj.Amount.IsZero() {
			return nil, fmt.Errorf("%w: zero amount", ErrInvalidAdjustment)
		}
	case ModeSet:
		if adj.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: negative target %s", ErrInvalidAdjustment, adj.Amount.String())
		}
		return a.setBalance(ctx, userID, adj.Amount.Round(ledger.Scale))
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidAdjustment, adj.Mode)
	}

	wallet, err := a.ledger.ApplyDelta(ctx, userID, adj.Amount, domain.TxAdminAdjustment, addDescription)
	if err != nil {
		return nil, err
	}
	logAdjustment(userID, adj.Mode, adj.Amount, adj.Amount)
	return wallet, nil
}

// setBalance reads the balance and applies the difference under one row
// lock, so a delta committed in between cannot move the result off target.
func (a *Adjuster) setBalance(ctx context.Context, userID uint, target decimal.Decimal) (*domain.Wallet, error) {
	var (
		wallet *domain.Wallet
		delta  decimal.Decimal
	)
	err := a.ledger.Transaction(ctx, func(tx *gorm.DB) error {
		current, err := a.ledger.LockWalletTx(tx, userID)
		if err != nil {
			return err
		}
		delta = target.Sub(current.Balance)
		if delta.IsZero() {
			wallet = current
			return nil
		}
		wallet, err = a.ledger.ApplyDeltaTx(tx, userID, delta, domain.TxAdminAdjustment, setDescription)
		return err
	})
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return wallet, nil
	}
	a.ledger.Invalidate(ctx, userID)
	logAdjustment(userID, ModeSet, target, delta)
	return wallet, nil
}

func logAdjustment(userID uint, mode Mode, amount, delta decimal.Decimal) {
	logrus.WithFields(logrus.Fields{
		"user_id": userID,          // Target user
		"mode":    mode,            // add or set
		"amount":  amount.String(), // Operator input
		"delta":   delta.String(),  // Applied delta
	}).Info("Admin balance adjustment")
}
