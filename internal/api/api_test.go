package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"zoin_economy/internal/admin"
	"zoin_economy/internal/domain"
	"zoin_economy/internal/fraud"
	"zoin_economy/internal/ledger"
	"zoin_economy/internal/market"
	"zoin_economy/internal/playlimit"
	"zoin_economy/internal/rewards"
	"zoin_economy/internal/scheduler"
	"zoin_economy/internal/testutil"
	"zoin_economy/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-jwt-secret"

type server struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	router *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)
	rdb := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := ledger.New(db, ledger.NewSigner("ledger-secret"))
	l.UseCache(utils.NewWalletCache(rdb))
	gate := playlimit.New(db)
	r := gin.New()
	Register(r, Deps{
		DB:        db,
		Redis:     rdb,
		JWTSecret: testSecret,
		Ledger:    l,
		Gate:      gate,
		Guard:     fraud.New(db, gate, l),
		Adjuster:  admin.New(l),
		Settler:   rewards.NewSettler(db, l, time.UTC),
		Market:    market.New(l, gate, 5, decimal.RequireFromString("0.10")),
		Scheduler: scheduler.New(db, time.UTC),
	})
	return &server{db: db, ledger: l, router: r}
}

func (s *server) do(t *testing.T, method, path string, userID uint, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := utils.GenerateJWT(userID, testSecret)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) balance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	w, err := s.ledger.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestRegisterAndLogin(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/user", 0, gin.H{"username": "Ana_01", "password": "correct horse"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user domain.User
	require.NoError(t, s.db.Where("username = ?", "ana_01").First(&user).Error)
	assert.Equal(t, 3, user.DailyGamesLeft)
	assert.True(t, s.balance(t, user.ID).IsZero())

	w = s.do(t, http.MethodPost, "/user", 0, gin.H{"username": "ana_01", "password": "correct horse"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/user/login", 0, gin.H{"username": "ANA_01", "password": "correct horse"})
	require.Equal(t, http.StatusOK, w.Code)
	var auth AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auth))
	claims, err := utils.ParseJWT(auth.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	w = s.do(t, http.MethodPost, "/user/login", 0, gin.H{"username": "ana_01", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitScoreFlow(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "ana", domain.MembershipFree, "0")

	w := s.do(t, http.MethodPost, "/games/scores", user.ID, gin.H{"amount": 120, "game": "memory", "zoins": "0.25"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, s.balance(t, user.ID).Equal(decimal.RequireFromString("0.25")))

	w = s.do(t, http.MethodGet, "/games/plays", user.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"daily_games_left":2`)

	w = s.do(t, http.MethodPost, "/games/scores", user.ID, gin.H{"game": "memory"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "amount is required")

	w = s.do(t, http.MethodPost, "/games/scores", 0, gin.H{"amount": 1, "game": "memory"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSuspiciousScoreFreezesAccount(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "ana", domain.MembershipFree, "0")

	w := s.do(t, http.MethodPost, "/games/scores", user.ID, gin.H{"amount": 9000, "game": "memory", "zoins": "5"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_FROZEN", errorCode(t, w))
	assert.Contains(t, w.Body.String(), "Security alert")

	// Later honest submissions are refused until review
	w = s.do(t, http.MethodPost, "/games/scores", user.ID, gin.H{"amount": 10, "game": "memory", "zoins": "0.1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, s.balance(t, user.ID).IsZero())
}

func TestDailyLimitReached(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "ana", domain.MembershipFree, "0")
	testutil.SetQuota(t, s.db, user.ID, 0, 0)

	w := s.do(t, http.MethodPost, "/games/scores", user.ID, gin.H{"amount": 10, "game": "memory"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "DAILY_LIMIT_REACHED", errorCode(t, w))
}

func TestBuyExtraGames(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "ana", domain.MembershipFree, "0.15")

	w := s.do(t, http.MethodPost, "/market/extra-games", user.ID, gin.H{"packs": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, s.balance(t, user.ID).Equal(decimal.RequireFromString("0.05")))

	w = s.do(t, http.MethodPost, "/market/extra-games", user.ID, gin.H{"packs": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", errorCode(t, w))
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t)
	player := testutil.CreateUser(t, s.db, "ana", domain.MembershipFree, "30")
	op := testutil.CreateUser(t, s.db, "root", domain.MembershipFree, "0")
	require.NoError(t, s.db.Model(&op).Update("role", "admin").Error)

	w := s.do(t, http.MethodPost, "/admin/users/1/balance", player.ID, gin.H{"mode": "set", "amount": "50"})
	assert.Equal(t, http.StatusForbidden, w.Code, "players cannot adjust balances")

	path := "/admin/users/" + itoa(player.ID) + "/balance"
	w = s.do(t, http.MethodPost, path, op.ID, gin.H{"mode": "set", "amount": "50"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, s.balance(t, player.ID).Equal(decimal.RequireFromString("50")))

	var adj domain.Transaction
	require.NoError(t, s.db.Where("type = ?", domain.TxAdminAdjustment).First(&adj).Error)
	assert.True(t, adj.Amount.Equal(decimal.RequireFromString("20")), "set applies the difference")

	w = s.do(t, http.MethodPost, path, op.ID, gin.H{"mode": "double", "amount": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/admin/audit/"+itoa(player.ID), op.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"consistent":false`, "seeded balance has no ledger entries")

	w = s.do(t, http.MethodGet, "/admin/tasks/ledger_audit/last", op.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminUnfreeze(t *testing.T) {
	s := newServer(t)
	player := testutil.CreateUser(t, s.db, "ana", domain.MembershipFree, "0")
	op := testutil.CreateUser(t, s.db, "root", domain.MembershipFree, "0")
	require.NoError(t, s.db.Model(&op).Update("role", "admin").Error)
	require.NoError(t, s.db.Model(&player).Update("is_frozen", true).Error)

	w := s.do(t, http.MethodPost, "/admin/users/"+itoa(player.ID)+"/unfreeze", op.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/games/scores", player.ID, gin.H{"amount": 10, "game": "memory", "zoins": "0.1"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAdminSettlement(t *testing.T) {
	s := newServer(t)
	op := testutil.CreateUser(t, s.db, "root", domain.MembershipFree, "0")
	require.NoError(t, s.db.Model(&op).Update("role", "admin").Error)
	require.NoError(t, s.db.Create(&domain.Score{UserID: op.ID, Game: "memory", Amount: 10,
		CreatedAt: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)}).Error)

	w := s.do(t, http.MethodPost, "/admin/settlements", op.ID, gin.H{"game": "memory", "period": "2026-03"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, s.balance(t, op.ID).Equal(decimal.RequireFromString("3")))

	w = s.do(t, http.MethodPost, "/admin/settlements", op.ID, gin.H{"game": "memory", "period": "2026-03"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PERIOD_ALREADY_SETTLED", errorCode(t, w))

	for _, open := range []string{time.Now().UTC().Format("2006-01"), "2099-01"} {
		w = s.do(t, http.MethodPost, "/admin/settlements", op.ID, gin.H{"game": "memory", "period": open})
		assert.Equal(t, http.StatusBadRequest, w.Code, open)
		assert.Equal(t, "PERIOD_NOT_CLOSED", errorCode(t, w), open)
	}
}

type usersListing struct {
	Users  []UserAdminResponse `json:"users"`
	Total  int64               `json:"total"`
	Cached bool                `json:"cached"`
}

func (s *server) listUsers(t *testing.T, adminID uint, query string) usersListing {
	t.Helper()
	w := s.do(t, http.MethodGet, "/admin/users"+query, adminID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out usersListing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAdminListUsersCacheFollowsWrites(t *testing.T) {
	s := newServer(t)
	player := testutil.CreateUser(t, s.db, "ana", domain.MembershipFree, "0")
	op := testutil.CreateUser(t, s.db, "root", domain.MembershipFree, "0")
	require.NoError(t, s.db.Model(&op).Update("role", "admin").Error)

	first := s.listUsers(t, op.ID, "")
	assert.False(t, first.Cached)
	assert.EqualValues(t, 2, first.Total)
	assert.True(t, s.listUsers(t, op.ID, "").Cached)
	assert.Empty(t, s.listUsers(t, op.ID, "?frozen=true").Users)

	// A credited round and then a freeze both drop the cached pages
	w := s.do(t, http.MethodPost, "/games/scores", player.ID, gin.H{"amount": 10, "game": "memory", "zoins": "0.2"})
	require.Equal(t, http.StatusCreated, w.Code)
	after := s.listUsers(t, op.ID, "")
	assert.False(t, after.Cached)
	assert.True(t, after.Users[0].Wallet.Balance.Equal(decimal.RequireFromString("0.2")))

	w = s.do(t, http.MethodPost, "/games/scores", player.ID, gin.H{"amount": 10, "game": "memory", "zoins": "3"})
	require.Equal(t, http.StatusForbidden, w.Code)
	frozen := s.listUsers(t, op.ID, "?frozen=true")
	assert.False(t, frozen.Cached)
	require.Len(t, frozen.Users, 1)
	assert.Equal(t, player.ID, frozen.Users[0].ID)

	w = s.do(t, http.MethodPost, "/admin/users/"+itoa(player.ID)+"/unfreeze", op.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.listUsers(t, op.ID, "?frozen=true").Users)
}

func TestAdminListTransactions(t *testing.T) {
	s := newServer(t)
	ana := testutil.CreateUser(t, s.db, "ana", domain.MembershipFree, "0")
	bea := testutil.CreateUser(t, s.db, "bea", domain.MembershipFree, "0")
	op := testutil.CreateUser(t, s.db, "root", domain.MembershipFree, "0")
	require.NoError(t, s.db.Model(&op).Update("role", "admin").Error)
	ctx := context.Background()
	for _, d := range []struct {
		user   uint
		amount string
		typ    domain.TransactionType
	}{
		{ana.ID, "2", domain.TxDeposit},
		{ana.ID, "-0.5", domain.TxPayment},
		{bea.ID, "1", domain.TxDeposit},
	} {
		_, err := s.ledger.ApplyDelta(ctx, d.user, decimal.RequireFromString(d.amount), d.typ, "seed")
		require.NoError(t, err)
	}

	list := func(query string) (int64, []domain.Transaction) {
		w := s.do(t, http.MethodGet, "/admin/transactions"+query, op.ID, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body struct {
			Total        int64                `json:"total"`
			Transactions []domain.Transaction `json:"transactions"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body.Total, body.Transactions
	}

	total, txs := list("")
	assert.EqualValues(t, 3, total)
	assert.Equal(t, domain.TxDeposit, txs[0].Type, "newest first")

	total, _ = list("?user_id=" + itoa(ana.ID))
	assert.EqualValues(t, 2, total)
	total, txs = list("?user_id=" + itoa(ana.ID) + "&type=payment")
	require.EqualValues(t, 1, total)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("-0.5")))

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	total, _ = list("?from=" + future)
	assert.Zero(t, total)

	w := s.do(t, http.MethodGet, "/admin/transactions?from=yesterday", op.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
