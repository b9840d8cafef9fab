package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"       // Key formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// CacheTTL is how long read views stay cached
const CacheTTL = 60 * time.Second

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil // Caching disabled
	}
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	if rdb == nil {
		return nil // Caching disabled
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil // Nothing to delete
	}
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// WalletKey is the cache key of a user's wallet view
func WalletKey(userID uint) string {
	return "wallet:user:" + strconv.FormatUint(uint64(userID), 10)
}

// HistoryKey is the cache key of one page of a user's transaction history
func HistoryKey(userID uint, page, pageSize int) string {
	return "txhistory:user:" + strconv.FormatUint(uint64(userID), 10) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
}

// AdminUsersKey is the cache key of one page of the admin user listing
func AdminUsersKey(page, pageSize int, frozenOnly bool) string {
	return adminUsersPrefix + "page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize) + ":frozen=" + strconv.FormatBool(frozenOnly)
}

const adminUsersPrefix = "admin:users:"

// WalletCache invalidates cached wallet views after ledger writes
type WalletCache struct {
	rdb *redis.Client // Redis client, nil disables caching
}

// NewWalletCache returns a WalletCache backed by rdb
func NewWalletCache(rdb *redis.Client) *WalletCache {
	return &WalletCache{rdb: rdb}
}

// InvalidateWallet drops the wallet view, every cached history page of the
// user and the admin user listing, which embeds balances and freeze flags
func (w *WalletCache) InvalidateWallet(ctx context.Context, userID uint) {
	if w == nil || w.rdb == nil {
		return
	}
	keys := []string{WalletKey(userID)}
	patterns := []string{
		"txhistory:user:" + strconv.FormatUint(uint64(userID), 10) + ":*", // History pages
		adminUsersPrefix + "*", // Admin listing pages
	}
	for _, pattern := range patterns {
		iter := w.rdb.Scan(ctx, 0, pattern, 100).Iterator() // Find matching cached pages
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			logrus.WithFields(logrus.Fields{"user_id": userID, "pattern": pattern, "error": err.Error()}).Warn("Cache scan failed")
		}
	}
	if err := DeleteCache(ctx, w.rdb, keys...); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Cache invalidation failed")
	}
}
