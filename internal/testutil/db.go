// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"zoin_economy/internal/db"
	"zoin_economy/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB returns a migrated in-memory SQLite database. A single
// connection keeps transactions serialized the way row locks do on MySQL.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// CreateUser inserts a user of the given tier with a wallet holding balance.
func CreateUser(t *testing.T, gdb *gorm.DB, username string, tier domain.Membership, balance string) domain.User {
	t.Helper()
	user := domain.User{
		Username:       username,
		Password:       "x",
		Membership:     tier,
		DailyGamesLeft: tier.DailyQuota(),
	}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	wallet := domain.Wallet{UserID: user.ID, Balance: decimal.RequireFromString(balance)}
	if err := gdb.Create(&wallet).Error; err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	user.Wallet = wallet
	return user
}

// SetQuota overwrites the play counters of a user.
func SetQuota(t *testing.T, gdb *gorm.DB, userID uint, daily, extra int) {
	t.Helper()
	err := gdb.Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{"daily_games_left": daily, "extra_games": extra}).Error
	if err != nil {
		t.Fatalf("set quota: %v", err)
	}
}
