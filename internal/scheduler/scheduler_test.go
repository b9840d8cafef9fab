package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"zoin_economy/internal/domain"
	"zoin_economy/internal/ledger"
	"zoin_economy/internal/playlimit"
	"zoin_economy/internal/rewards"
	"zoin_economy/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRecordsTaskRuns(t *testing.T) {
	db := testutil.NewTestDB(t)
	s := New(db, time.UTC)
	ctx := context.Background()

	_, err := s.LastRun(ctx, "cleanup")
	require.ErrorIs(t, err, ErrNeverRun)

	require.NoError(t, s.Run(ctx, "cleanup", func(context.Context) (string, error) { return "3 removed", nil }))
	run, err := s.LastRun(ctx, "cleanup")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, run.Status)
	assert.Equal(t, "3 removed", run.Detail)

	boom := errors.New("disk full")
	err = s.Run(ctx, "cleanup", func(context.Context) (string, error) { return "1 removed", boom })
	require.ErrorIs(t, err, boom)
	run, err = s.LastRun(ctx, "cleanup")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "1 removed; disk full", run.Detail)

	var count int64
	require.NoError(t, db.Model(&domain.TaskRun{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(testutil.NewTestDB(t), time.UTC)
	noop := func(context.Context) (string, error) { return "", nil }

	assert.Error(t, s.Register("broken", "every day", noop))
	assert.NoError(t, s.Register(TaskDailyReset, "0 0 * * *", noop))
}

func TestDailyResetJob(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "ana", domain.MembershipCoral, "0")
	testutil.SetQuota(t, db, user.ID, 0, 2)

	s := New(db, time.UTC)
	require.NoError(t, s.Run(context.Background(), TaskDailyReset, DailyReset(playlimit.New(db))))

	var reloaded domain.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, 15, reloaded.DailyGamesLeft)
	assert.Equal(t, 2, reloaded.ExtraGames)

	run, err := s.LastRun(context.Background(), TaskDailyReset)
	require.NoError(t, err)
	assert.Equal(t, "1 users reset", run.Detail)
}

func TestMonthlySettlementJobTreatsRerunAsOK(t *testing.T) {
	db := testutil.NewTestDB(t)
	l := ledger.New(db, ledger.NewSigner("secret"))
	settler := rewards.NewSettler(db, l, time.UTC)
	job := MonthlySettlement(settler, []string{"memory", "snake"})

	detail, err := job(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, "memory")

	detail, err = job(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory: already settled; snake: already settled", detail)
}

func TestLedgerAuditJob(t *testing.T) {
	db := testutil.NewTestDB(t)
	l := ledger.New(db, ledger.NewSigner("secret"))
	user := testutil.CreateUser(t, db, "ana", domain.MembershipFree, "0")
	_, err := l.ApplyDelta(context.Background(), user.ID, decimal.RequireFromString("2"), domain.TxDeposit, "top up")
	require.NoError(t, err)

	detail, err := LedgerAudit(l)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1 wallets checked, 0 inconsistent", detail)

	require.NoError(t, db.Model(&domain.Wallet{}).Where("id = ?", user.Wallet.ID).
		Update("balance", decimal.RequireFromString("5")).Error)
	_, err = LedgerAudit(l)(context.Background())
	assert.Error(t, err)
}
