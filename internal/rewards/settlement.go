// Package rewards ranks a month of scores per game and pays fixed
// rewards through the ledger.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zoin_economy/internal/domain"
	"zoin_economy/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrPeriodAlreadySettled is returned when a (game, period) pair has been settled before.
	ErrPeriodAlreadySettled = errors.New("period already settled")
	// ErrPeriodNotClosed is returned for a month that has not ended yet.
	ErrPeriodNotClosed = errors.New("period has not ended")
)

// SettlementRowFailure records a reward that could not be paid. The batch
// continues past it.
type SettlementRowFailure struct {
	ScoreID uint
	UserID  uint
	Rank    int
	Reward  decimal.Decimal
	Err     error
}

func (e *SettlementRowFailure) Error() string {
	return fmt.Sprintf("reward rank %d to user %d (score %d): %v", e.Rank, e.UserID, e.ScoreID, e.Err)
}

func (e *SettlementRowFailure) Unwrap() error { return e.Err }

// Result summarises one settlement.
type Result struct {
	Game     string                  `json:"game"`
	Period   string                  `json:"period"`
	Paid     []Placement             `json:"paid"`
	Failures []*SettlementRowFailure `json:"-"`
}

// Settler runs monthly settlements.
type Settler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	loc    *time.Location
	now    func() time.Time
}

// NewSettler returns a Settler computing periods in loc.
func NewSettler(db *gorm.DB, l *ledger.Ledger, loc *time.Location) *Settler {
	if loc == nil {
		loc = time.UTC
	}
	return &Settler{db: db, ledger: l, loc: loc, now: time.Now}
}

// Location is the zone periods are computed in.
func (s *Settler) Location() *time.Location { return s.loc }

// RunMonthlySettlement settles game for the month that just ended.
func (s *Settler) RunMonthlySettlement(ctx context.Context, game string) (*Result, error) {
	return s.Settle(ctx, game, PreviousMonth(s.now(), s.loc))
}

// Settle pays the top ranks of game within period. Only months that have
// ended can be settled. Each (game, period) pair is paid at most once;
// per-user failures are logged and skipped.
func (s *Settler) Settle(ctx context.Context, game string, period Period) (*Result, error) {
	if period.End.After(s.now()) {
		return nil, fmt.Errorf("%s %s: %w", game, period.Key, ErrPeriodNotClosed)
	}
	run, err := s.claim(ctx, game, period.Key)
	if err != nil {
		return nil, err
	}

	var scores []domain.Score
	err = s.db.WithContext(ctx).
		Where("game = ? AND created_at >= ? AND created_at < ?", game, period.Start.UTC(), period.End.UTC()).
		Order("amount desc").Order("created_at asc").Order("id asc").
		Limit(CandidateLimit).
		Find(&scores).Error
	if err != nil {
		// Release the claim so the period can be retried
		if derr := s.db.WithContext(ctx).Delete(run).Error; derr != nil {
			logrus.WithFields(logrus.Fields{
				"game":   game,         // Game identifier
				"period": period.Key,   // Locked month
				"error":  derr.Error(), // Why the claim was kept
			}).Error("Failed to release settlement claim")
		}
		return nil, fmt.Errorf("fetch scores: %w", err)
	}

	result := &Result{Game: game, Period: period.Key}
	for _, p := range Rank(scores) {
		desc := fmt.Sprintf("rank %d, %s, %s", p.Rank, period.Key, game)
		if _, err := s.ledger.ApplyDelta(ctx, p.Score.UserID, p.Reward, domain.TxGameReward, desc); err != nil {
			failure := &SettlementRowFailure{ScoreID: p.Score.ID, UserID: p.Score.UserID, Rank: p.Rank, Reward: p.Reward, Err: err}
			result.Failures = append(result.Failures, failure)
			logrus.WithFields(logrus.Fields{
				"game":    game,           // Game identifier
				"period":  period.Key,     // Settled month
				"user_id": p.Score.UserID, // Score owner
				"rank":    p.Rank,         // Competition rank
				"error":   err.Error(),    // Failure reason
			}).Error("Settlement reward skipped")
			continue
		}
		result.Paid = append(result.Paid, p)
	}

	finished := s.now().UTC()
	err = s.db.WithContext(ctx).Model(run).Updates(map[string]any{
		"status":      domain.SettlementPaid,
		"paid_count":  len(result.Paid),
		"skip_count":  len(result.Failures),
		"finished_at": finished,
	}).Error
	if err != nil {
		return result, fmt.Errorf("mark settlement paid: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"game":    game,                 // Game identifier
		"period":  period.Key,           // Settled month
		"paid":    len(result.Paid),     // Rewards credited
		"skipped": len(result.Failures), // Rewards that failed
	}).Info("Monthly settlement completed")
	return result, nil
}

// claim records the (game, period) pair before any payout so a second run
// is refused.
func (s *Settler) claim(ctx context.Context, game, period string) (*domain.SettlementRun, error) {
	run := domain.SettlementRun{Game: game, Period: period, Status: domain.SettlementRunning}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.SettlementRun{}).Where("game = ? AND period = ?", game, period).Count(&count).Error; err != nil {
			return fmt.Errorf("check settlement: %w", err)
		}
		if count > 0 {
			return ErrPeriodAlreadySettled
		}
		return tx.Create(&run).Error
	})
	if err != nil {
		// A failed insert may be a concurrent claim hitting the unique index
		if !errors.Is(err, ErrPeriodAlreadySettled) && !s.settled(ctx, game, period) {
			return nil, fmt.Errorf("claim settlement: %w", err)
		}
		logrus.WithFields(logrus.Fields{"game": game, "period": period}).Warn("Settlement re-run refused")
		return nil, fmt.Errorf("%s %s: %w", game, period, ErrPeriodAlreadySettled)
	}
	return &run, nil
}

func (s *Settler) settled(ctx context.Context, game, period string) bool {
	var count int64
	s.db.WithContext(ctx).Model(&domain.SettlementRun{}).Where("game = ? AND period = ?", game, period).Count(&count)
	return count > 0
}

// Runs lists recorded settlements, newest first.
func (s *Settler) Runs(ctx context.Context, game string) ([]domain.SettlementRun, error) {
	var runs []domain.SettlementRun
	query := s.db.WithContext(ctx).Order("period desc").Order("id desc")
	if game != "" {
		query = query.Where("game = ?", game)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return runs, nil
}
