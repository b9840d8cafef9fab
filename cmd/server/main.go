package main

import (
	"context"                         // context package is needed for Redis operations
	"errors"                          // Error inspection
	"net/http"                        // HTTP server
	"os"                              // Signals
	"os/signal"                       // Graceful shutdown
	"syscall"                         // Termination signal
	"time"                            // Shutdown timeout
	"zoin_economy/internal/admin"     // Admin balance adjustments
	"zoin_economy/internal/api"       // Custom package for API handlers
	"zoin_economy/internal/config"    // Custom package for configuration
	"zoin_economy/internal/db"        // Database connection
	"zoin_economy/internal/fraud"     // Score anti-fraud gate
	"zoin_economy/internal/ledger"    // Balance ledger
	"zoin_economy/internal/market"    // Store
	"zoin_economy/internal/playlimit" // Daily play quota
	"zoin_economy/internal/rewards"   // Monthly settlement
	"zoin_economy/internal/scheduler" // Scheduled tasks
	"zoin_economy/internal/utils"     // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.LedgerSecret == "" || cfg.JWTSecret == "" {
		logrus.Fatal("LEDGER_SECRET and JWT_SECRET must be set")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logrus.Fatalf("invalid TIMEZONE %q: %v", cfg.Timezone, err)
	}

	gdb, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Core services
	led := ledger.New(gdb, ledger.NewSigner(cfg.LedgerSecret))
	led.UseCache(utils.NewWalletCache(redisClient))
	gate := playlimit.New(gdb)
	guard := fraud.New(gdb, gate, led)
	settler := rewards.NewSettler(gdb, led, loc)
	store := market.New(led, gate, cfg.ExtraGamesPackSize, cfg.ExtraGamesPackPrice)

	// Scheduled tasks
	sched := scheduler.New(gdb, loc)
	tasks := []struct {
		name string
		spec string
		job  scheduler.Job
	}{
		{scheduler.TaskDailyReset, cfg.DailyResetCron, scheduler.DailyReset(gate)},
		{scheduler.TaskMonthlySettlement, cfg.MonthlySettlementCron, scheduler.MonthlySettlement(settler, cfg.RewardGames)},
		{scheduler.TaskLedgerAudit, cfg.LedgerAuditCron, scheduler.LedgerAudit(led)},
	}
	for _, t := range tasks {
		if err := sched.Register(t.name, t.spec, t.job); err != nil {
			logrus.Fatalf("failed to schedule task: %v", err)
		}
	}
	sched.Start()

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default() // Gin router instance
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	api.Register(r, api.Deps{
		DB:        gdb,
		Redis:     redisClient,
		JWTSecret: cfg.JWTSecret,
		Ledger:    led,
		Gate:      gate,
		Guard:     guard,
		Adjuster:  admin.New(led),
		Settler:   settler,
		Market:    store,
		Scheduler: sched,
	})

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for a termination signal, then drain requests and running tasks
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("server shutdown: %v", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		logrus.Warn("scheduled tasks still running at shutdown")
	}
	_ = redisClient.Close()
	logrus.Info("Server stopped")
}
