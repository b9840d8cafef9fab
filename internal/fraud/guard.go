// Package fraud validates gameplay submissions before they reach the
// ledger and freezes accounts that report anomalous earnings.
package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zoin_economy/internal/domain"
	"zoin_economy/internal/ledger"
	"zoin_economy/internal/playlimit"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAccountFrozen     = errors.New("account frozen pending security review")
	ErrInvalidSubmission = errors.New("invalid score submission")
)

// SuspicionThreshold is the most Zoins a single round may claim. Claims
// strictly above it freeze the account.
var SuspicionThreshold = decimal.RequireFromString("0.5")

// MaxRawScore bounds the points a round may report, keeping scores
// exact in JSON clients and the multiplier within int64.
const MaxRawScore int64 = 1 << 53

// Submission is one completed round reported by a game client.
type Submission struct {
	UserID uint
	Amount int64           // raw points
	Game   string          // game identifier
	Zoins  decimal.Decimal // currency claimed for the round
}

// Guard is the gate every score submission passes through.
type Guard struct {
	db     *gorm.DB
	gate   *playlimit.Gate
	ledger *ledger.Ledger
	now    func() time.Time
}

// New returns a Guard.
func New(db *gorm.DB, gate *playlimit.Gate, l *ledger.Ledger) *Guard {
	return &Guard{db: db, gate: gate, ledger: l, now: time.Now}
}

// ApplyMultiplier returns the persisted score for a raw score: PERLA
// members get floor(raw * 1.1), every other tier is unchanged.
func ApplyMultiplier(tier domain.Membership, raw int64) int64 {
	if tier == domain.MembershipPerla {
		return raw + raw/10
	}
	return raw
}

// SubmitScore validates a round and records it. Quota consumption, the
// score row and the reward credit commit together, and only after the
// anomaly check has passed.
func (g *Guard) SubmitScore(ctx context.Context, sub Submission) (*domain.Score, error) {
	sub.Game = strings.TrimSpace(sub.Game)
	if sub.Amount < 0 || sub.Amount > MaxRawScore || sub.Game == "" || sub.Zoins.IsNegative() {
		return nil, ErrInvalidSubmission
	}

	var user domain.User
	err := g.db.WithContext(ctx).
		Select("id", "membership", "daily_games_left", "extra_games", "is_frozen").
		First(&user, sub.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", sub.UserID, playlimit.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.IsFrozen {
		return nil, ErrAccountFrozen
	}
	if user.DailyGamesLeft <= 0 && user.ExtraGames <= 0 {
		return nil, playlimit.ErrDailyLimitReached
	}

	if sub.Zoins.GreaterThan(SuspicionThreshold) {
		reason := fmt.Sprintf("claimed %s zoins in one %s round", sub.Zoins.String(), sub.Game)
		if err := g.Freeze(ctx, sub.UserID, reason); err != nil {
			return nil, err
		}
		return nil, ErrAccountFrozen
	}

	// Sub-precision claims credit nothing but still record the round
	credit := sub.Zoins.Round(ledger.Scale)
	score := domain.Score{
		UserID:    sub.UserID,
		Game:      sub.Game,
		Amount:    ApplyMultiplier(user.Membership, sub.Amount),
		CreatedAt: g.now().UTC(),
	}
	credited := false
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&score).Error; err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
		consumed, err := g.gate.ConsumeTx(tx, sub.UserID)
		if err != nil {
			return err
		}
		if !consumed {
			return playlimit.ErrDailyLimitReached // Lost a race for the last play
		}
		if credit.IsPositive() {
			desc := fmt.Sprintf("%s round reward", sub.Game)
			if _, err := g.ledger.ApplyDeltaTx(tx, sub.UserID, credit, domain.TxGameReward, desc); err != nil {
				return err
			}
			credited = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if credited {
		g.ledger.Invalidate(ctx, sub.UserID)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": sub.UserID,      // Player
		"game":    sub.Game,        // Game identifier
		"raw":     sub.Amount,      // Points reported by the client
		"score":   score.Amount,    // Points after multiplier
		"zoins":   credit.String(), // Currency credited
	}).Info("Score recorded")
	return &score, nil
}

// Freeze locks the account until an operator clears it. The flag is
// written in its own transaction so it persists even though the
// triggering request fails.
func (g *Guard) Freeze(ctx context.Context, userID uint, reason string) error {
	res := g.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).UpdateColumn("is_frozen", true)
	if res.Error != nil {
		return fmt.Errorf("freeze account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, playlimit.ErrUserNotFound)
	}
	g.ledger.Invalidate(ctx, userID) // Cached admin views show the flag
	logrus.WithFields(logrus.Fields{
		"user_id":        userID, // Locked account
		"reason":         reason, // Anomaly detected
		"security_alert": true,   // Requires manual review
	}).Warn("Account frozen")
	return nil
}

// Unfreeze clears the freeze after manual review.
func (g *Guard) Unfreeze(ctx context.Context, userID uint, reviewer uint) error {
	res := g.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).UpdateColumn("is_frozen", false)
	if res.Error != nil {
		return fmt.Errorf("unfreeze account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, playlimit.ErrUserNotFound)
	}
	g.ledger.Invalidate(ctx, userID)
	logrus.WithFields(logrus.Fields{"user_id": userID, "reviewer_id": reviewer}).Info("Account unfrozen")
	return nil
}
