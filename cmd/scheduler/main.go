// Command scheduler runs the periodic scheduled-message promotion and
// failed-message retry passes.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // v1.10.9, postgres driver
	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/retry"
	"github.com/notiplex/notification-platform/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("scheduler: fatal error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	st := store.New(db, cfg.Database)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	b := bus.New(redisClient)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.EnsureGroups(ctx); err != nil {
		return fmt.Errorf("ensuring bus consumer groups: %w", err)
	}

	loop := retry.New(st, b, cfg.Retry, logger)
	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("starting retry loop: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("scheduler: started")
	<-sigCtx.Done()

	logger.Info("scheduler: shutting down")
	loop.Stop()

	return nil
}
