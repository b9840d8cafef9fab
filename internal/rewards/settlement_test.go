package rewards

import (
	"context"
	"errors"
	"testing"
	"time"

	"zoin_economy/internal/domain"
	"zoin_economy/internal/ledger"
	"zoin_economy/internal/testutil"

	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type settleFixture struct {
	db      *gorm.DB
	ledger  *ledger.Ledger
	settler *Settler
}

func newSettleFixture(t *testing.T) *settleFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	l := ledger.New(db, ledger.NewSigner("secret"))
	s := NewSettler(db, l, time.UTC)
	s.now = func() time.Time { return time.Date(2026, 10, 1, 0, 5, 0, 0, time.UTC) }
	return &settleFixture{db: db, ledger: l, settler: s}
}

func (f *settleFixture) score(t *testing.T, userID uint, game string, amount int64, at time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.Score{UserID: userID, Game: game, Amount: amount, CreatedAt: at}).Error)
}

func (f *settleFixture) balance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	w, err := f.ledger.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func TestMonthlySettlementPaysTies(t *testing.T) {
	f := newSettleFixture(t)
	sept := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	amounts := []int64{500, 500, 300, 200, 100, 100, 50}
	users := make([]domain.User, len(amounts))
	for i, a := range amounts {
		users[i] = testutil.CreateUser(t, f.db, "p"+string(rune('a'+i)), domain.MembershipFree, "0")
		f.score(t, users[i].ID, "memory", a, sept.Add(time.Duration(i)*time.Hour))
	}
	// Outside the period or another game
	f.score(t, users[6].ID, "memory", 9999, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	f.score(t, users[6].ID, "memory", 9999, time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC))
	f.score(t, users[6].ID, "snake", 9999, sept)

	res, err := f.settler.RunMonthlySettlement(context.Background(), "memory")
	require.NoError(t, err)
	assert.Equal(t, "2026-09", res.Period)
	assert.Len(t, res.Paid, 6)
	assert.Empty(t, res.Failures)

	want := []string{"3", "3", "0.15", "0.15", "0.15", "0.15", "0"}
	for i, u := range users {
		assert.True(t, f.balance(t, u.ID).Equal(decimal.RequireFromString(want[i])), "user %d got %s", i, f.balance(t, u.ID))
	}

	var tx domain.Transaction
	require.NoError(t, f.db.Where("type = ?", domain.TxGameReward).Order("id").First(&tx).Error)
	assert.Equal(t, "rank 1, 2026-09, memory", tx.Description)

	var run domain.SettlementRun
	require.NoError(t, f.db.Where("game = ? AND period = ?", "memory", "2026-09").First(&run).Error)
	assert.Equal(t, domain.SettlementPaid, run.Status)
	assert.Equal(t, 6, run.PaidCount)
	require.NotNil(t, run.FinishedAt)
}

func TestSettlementRefusesRerun(t *testing.T) {
	f := newSettleFixture(t)
	user := testutil.CreateUser(t, f.db, "ana", domain.MembershipFree, "0")
	f.score(t, user.ID, "memory", 10, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := f.settler.RunMonthlySettlement(ctx, "memory")
	require.NoError(t, err)
	_, err = f.settler.RunMonthlySettlement(ctx, "memory")
	require.ErrorIs(t, err, ErrPeriodAlreadySettled)

	assert.True(t, f.balance(t, user.ID).Equal(decimal.RequireFromString("3")), "paid once")

	// A different game for the same month is independent
	_, err = f.settler.RunMonthlySettlement(ctx, "snake")
	require.NoError(t, err)

	runs, err := f.settler.Runs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSettlementSkipsFailedRows(t *testing.T) {
	f := newSettleFixture(t)
	sept := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	first := testutil.CreateUser(t, f.db, "ana", domain.MembershipFree, "0")
	orphan := domain.User{Username: "ghost", Password: "x", Membership: domain.MembershipFree}
	require.NoError(t, f.db.Create(&orphan).Error) // no wallet
	third := testutil.CreateUser(t, f.db, "cam", domain.MembershipFree, "0")

	f.score(t, first.ID, "memory", 300, sept)
	f.score(t, orphan.ID, "memory", 200, sept)
	f.score(t, third.ID, "memory", 100, sept)

	res, err := f.settler.RunMonthlySettlement(context.Background(), "memory")
	require.NoError(t, err)
	assert.Len(t, res.Paid, 2)
	require.Len(t, res.Failures, 1)

	var rowErr *SettlementRowFailure
	require.True(t, errors.As(res.Failures[0], &rowErr))
	assert.Equal(t, orphan.ID, rowErr.UserID)
	assert.Equal(t, 2, rowErr.Rank)
	assert.ErrorIs(t, rowErr, ledger.ErrWalletNotFound)

	assert.True(t, f.balance(t, first.ID).Equal(decimal.RequireFromString("3")))
	assert.True(t, f.balance(t, third.ID).Equal(decimal.RequireFromString("0.15")))

	var run domain.SettlementRun
	require.NoError(t, f.db.First(&run).Error)
	assert.Equal(t, 1, run.SkipCount)
}

func TestSettlementCandidateLimit(t *testing.T) {
	f := newSettleFixture(t)
	user := testutil.CreateUser(t, f.db, "ana", domain.MembershipFree, "0")
	sept := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < CandidateLimit+10; i++ {
		f.score(t, user.ID, "memory", 42, sept.Add(time.Duration(i)*time.Minute))
	}

	res, err := f.settler.RunMonthlySettlement(context.Background(), "memory")
	require.NoError(t, err)
	assert.Len(t, res.Paid, CandidateLimit, "ties beyond the candidate window are not fetched")
}

func TestSettlementRefusesOpenMonths(t *testing.T) {
	f := newSettleFixture(t)
	f.settler.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	early := testutil.CreateUser(t, f.db, "ana", domain.MembershipFree, "0")
	late := testutil.CreateUser(t, f.db, "bea", domain.MembershipFree, "0")
	f.score(t, early.ID, "memory", 100, time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := f.settler.Settle(ctx, "memory", MonthOf(f.settler.now(), time.UTC))
	require.ErrorIs(t, err, ErrPeriodNotClosed, "current month is still open")

	future, err := ParsePeriod("2099-01", time.UTC)
	require.NoError(t, err)
	_, err = f.settler.Settle(ctx, "memory", future)
	require.ErrorIs(t, err, ErrPeriodNotClosed)

	var runs int64
	require.NoError(t, f.db.Model(&domain.SettlementRun{}).Count(&runs).Error)
	assert.Zero(t, runs, "a refused period is not claimed")

	// The scheduled run after month end still pays the full ranking
	f.score(t, late.ID, "memory", 900, time.Date(2026, 10, 28, 0, 0, 0, 0, time.UTC))
	f.settler.now = func() time.Time { return time.Date(2026, 11, 1, 0, 5, 0, 0, time.UTC) }
	res, err := f.settler.RunMonthlySettlement(ctx, "memory")
	require.NoError(t, err)
	assert.Equal(t, "2026-10", res.Period)
	assert.True(t, f.balance(t, late.ID).Equal(decimal.RequireFromString("3")))
	assert.True(t, f.balance(t, early.ID).Equal(decimal.RequireFromString("1")))
}

func failOn(t *testing.T, name string, register func(name string, fn func(*gorm.DB)) error, table string) {
	t.Helper()
	require.NoError(t, register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New(table + " unavailable"))
		}
	}))
}

func TestSettlementReleasesClaimOnFetchFailure(t *testing.T) {
	f := newSettleFixture(t)
	failOn(t, "fail_scores", f.db.Callback().Query().Before("gorm:query").Register, "scores")

	_, err := f.settler.RunMonthlySettlement(context.Background(), "memory")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPeriodAlreadySettled)

	var runs int64
	require.NoError(t, f.db.Model(&domain.SettlementRun{}).Count(&runs).Error)
	assert.Zero(t, runs, "claim released for a retry")
}

func TestSettlementLogsUnreleasedClaim(t *testing.T) {
	f := newSettleFixture(t)
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)
	failOn(t, "fail_scores", f.db.Callback().Query().Before("gorm:query").Register, "scores")
	failOn(t, "fail_release", f.db.Callback().Delete().Before("gorm:delete").Register, "settlement_runs")

	_, err := f.settler.RunMonthlySettlement(context.Background(), "memory")
	require.Error(t, err)

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to release settlement claim" {
			logged = true
			assert.Equal(t, "2026-09", e.Data["period"])
		}
	}
	assert.True(t, logged)
}
