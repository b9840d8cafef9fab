// Package playlimit enforces per-tier daily play quotas and purchased
// bonus plays. It is the only writer of the quota counters.
package playlimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zoin_economy/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrDailyLimitReached = errors.New("daily play limit reached")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredit     = errors.New("extra games must be positive")
)

// Status is the play allowance of a user.
type Status struct {
	Membership     domain.Membership `json:"membership"`
	DailyQuota     int               `json:"daily_quota"`
	DailyGamesLeft int               `json:"daily_games_left"`
	ExtraGames     int               `json:"extra_games"`
	CanPlay        bool              `json:"can_play"`
}

// Gate tracks and consumes play quota.
type Gate struct {
	db  *gorm.DB
	now func() time.Time
}

// New returns a Gate over db.
func New(db *gorm.DB) *Gate {
	return &Gate{db: db, now: time.Now}
}

// Status reports the user's remaining plays.
func (g *Gate) Status(ctx context.Context, userID uint) (*Status, error) {
	var user domain.User
	err := g.db.WithContext(ctx).Select("id", "membership", "daily_games_left", "extra_games").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &Status{
		Membership:     user.Membership,
		DailyQuota:     user.Membership.DailyQuota(),
		DailyGamesLeft: user.DailyGamesLeft,
		ExtraGames:     user.ExtraGames,
		CanPlay:        user.DailyGamesLeft > 0 || user.ExtraGames > 0,
	}, nil
}

// CanPlay is true while the user has daily or bonus plays left.
func (g *Gate) CanPlay(ctx context.Context, userID uint) (bool, error) {
	st, err := g.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.CanPlay, nil
}

// ConsumeDailyGame spends one play, daily quota first. It is a no-op when
// nothing is left.
func (g *Gate) ConsumeDailyGame(ctx context.Context, userID uint) error {
	_, err := g.ConsumeTx(g.db.WithContext(ctx), userID)
	return err
}

// ConsumeTx spends one play inside tx and reports whether one was spent.
// Each decrement is conditional so concurrent submissions cannot overdraw.
func (g *Gate) ConsumeTx(tx *gorm.DB, userID uint) (bool, error) {
	res := tx.Model(&domain.User{}).
		Where("id = ? AND daily_games_left > 0", userID).
		UpdateColumn("daily_games_left", gorm.Expr("daily_games_left - 1"))
	if res.Error != nil {
		return false, fmt.Errorf("consume daily game: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	res = tx.Model(&domain.User{}).
		Where("id = ? AND extra_games > 0", userID).
		UpdateColumn("extra_games", gorm.Expr("extra_games - 1"))
	if res.Error != nil {
		return false, fmt.Errorf("consume extra game: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AddExtraGamesTx credits purchased plays inside tx.
func (g *Gate) AddExtraGamesTx(tx *gorm.DB, userID uint, n int) error {
	if n <= 0 {
		return ErrInvalidCredit
	}
	res := tx.Model(&domain.User{}).Where("id = ?", userID).
		UpdateColumn("extra_games", gorm.Expr("extra_games + ?", n))
	if res.Error != nil {
		return fmt.Errorf("add extra games: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	return nil
}

// AddExtraGames credits purchased plays.
func (g *Gate) AddExtraGames(ctx context.Context, userID uint, n int) error {
	return g.AddExtraGamesTx(g.db.WithContext(ctx), userID, n)
}

// ResetAllDailyGames refills every user's daily quota from their tier and
// stamps the reset time. Extra games are left untouched.
func (g *Gate) ResetAllDailyGames(ctx context.Context) (int64, error) {
	now := g.now().UTC()
	var total int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		known := make([]domain.Membership, 0, 4)
		for _, tier := range domain.Memberships() {
			known = append(known, tier)
			res := tx.Model(&domain.User{}).Where("membership = ?", tier).
				UpdateColumns(map[string]any{"daily_games_left": tier.DailyQuota(), "last_daily_reset": now})
			if res.Error != nil {
				return fmt.Errorf("reset %s: %w", tier, res.Error)
			}
			total += res.RowsAffected
		}
		// Unrecognised tiers fall back to the free quota
		res := tx.Model(&domain.User{}).Where("membership NOT IN ?", known).
			UpdateColumns(map[string]any{"daily_games_left": domain.MembershipFree.DailyQuota(), "last_daily_reset": now})
		if res.Error != nil {
			return fmt.Errorf("reset unknown tiers: %w", res.Error)
		}
		total += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"users": total, "reset_at": now.Format(time.RFC3339)}).Info("Daily games reset")
	return total, nil
}
