// @title           Settleup API
// @version         1.0
// @description     Shared-expense balances and settle-up plans for groups.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fkhayef/settleup/internal/config"
	"github.com/fkhayef/settleup/internal/database"
	"github.com/fkhayef/settleup/internal/server"
	"github.com/fkhayef/settleup/pkg/idempotency"
	"github.com/fkhayef/settleup/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := database.Migrate(ctx, cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
		return err
	}

	// Initialize database connection
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("connected to database", "driver", cfg.DatabaseDriver)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = idempotency.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		slog.Info("redis connected, idempotency keys enabled", "ttl", cfg.IdempotencyTTL)
	} else {
		slog.Warn("REDIS_URL not set, idempotency keys are ignored")
	}

	return server.New(cfg, db, rdb).Run(ctx)
}
