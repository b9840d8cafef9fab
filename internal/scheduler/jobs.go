package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zoin_economy/internal/ledger"
	"zoin_economy/internal/playlimit"
	"zoin_economy/internal/rewards"
)

// Task names
const (
	TaskDailyReset        = "daily_quota_reset"
	TaskMonthlySettlement = "monthly_settlement"
	TaskLedgerAudit       = "ledger_audit"
)

// DailyReset refills every user's daily quota.
func DailyReset(gate *playlimit.Gate) Job {
	return func(ctx context.Context) (string, error) {
		n, err := gate.ResetAllDailyGames(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d users reset", n), nil
	}
}

// MonthlySettlement settles the month that just ended for every game.
// A game already settled for that month is reported, not treated as a failure.
func MonthlySettlement(settler *rewards.Settler, games []string) Job {
	return func(ctx context.Context) (string, error) {
		var (
			parts []string
			errs  []error
		)
		for _, game := range games {
			res, err := settler.RunMonthlySettlement(ctx, game)
			switch {
			case errors.Is(err, rewards.ErrPeriodAlreadySettled):
				parts = append(parts, game+": already settled")
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", game, err))
			default:
				parts = append(parts, fmt.Sprintf("%s %s: %d paid, %d skipped", game, res.Period, len(res.Paid), len(res.Failures)))
			}
		}
		return strings.Join(parts, "; "), errors.Join(errs...)
	}
}

// LedgerAudit replays every wallet's log and fails when any is inconsistent.
func LedgerAudit(l *ledger.Ledger) Job {
	return func(ctx context.Context) (string, error) {
		failed, checked, err := l.AuditAll(ctx)
		if err != nil {
			return "", err
		}
		detail := fmt.Sprintf("%d wallets checked, %d inconsistent", checked, len(failed))
		if len(failed) > 0 {
			return detail, fmt.Errorf("ledger audit found %d inconsistent wallets", len(failed))
		}
		return detail, nil
	}
}
