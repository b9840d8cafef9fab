package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For list parsing

	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // Fixed-point amounts
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	LedgerSecret          string          // HMAC key for transaction signatures
	Timezone              string          // Wall-clock zone for scheduled tasks
	DailyResetCron        string          // Schedule of the daily quota reset
	MonthlySettlementCron string          // Schedule of the monthly reward settlement
	LedgerAuditCron       string          // Schedule of the ledger integrity audit
	RewardGames           []string        // Games settled every month
	ExtraGamesPackSize    int             // Bonus plays sold per pack
	ExtraGamesPackPrice   decimal.Decimal // Price of one pack in Zoins
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),     // Application port
		DBUser:     os.Getenv("DB_USER"),           // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:     getEnv("DB_HOST", "127.0.0.1"), // Database host
		DBPort:     getEnv("DB_PORT", "3306"),      // Database port
		DBName:     os.Getenv("DB_NAME"),           // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),        // JWT secret key
		RedisAddr:  getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass:  os.Getenv("REDIS_PASS"),        // Redis password
		RedisDB:    redisDB,                        // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true", // Is production environment

		LedgerSecret:          os.Getenv("LEDGER_SECRET"),
		Timezone:              getEnv("TIMEZONE", "UTC"),
		DailyResetCron:        getEnv("DAILY_RESET_CRON", "0 0 * * *"),
		MonthlySettlementCron: getEnv("MONTHLY_SETTLEMENT_CRON", "5 0 1 * *"),
		LedgerAuditCron:       getEnv("LEDGER_AUDIT_CRON", "30 3 * * *"),
		RewardGames:           splitList(getEnv("REWARD_GAMES", "memory,snake")),
		ExtraGamesPackSize:    getEnvInt("EXTRA_GAMES_PACK_SIZE", 5),
		ExtraGamesPackPrice:   getEnvDecimal("EXTRA_GAMES_PACK_PRICE", "0.10"),
	}
}

// DSN returns the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&loc=UTC&clientFoundRows=true"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if d, err := decimal.NewFromString(os.Getenv(key)); err == nil && d.IsPositive() {
		return d
	}
	return decimal.RequireFromString(fallback)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
