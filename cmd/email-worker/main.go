// Command email-worker consumes the email topic and dispatches messages
// through the SendGrid-shaped provider client.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // v1.10.9, postgres driver
	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/provider/email"
	"github.com/notiplex/notification-platform/internal/store"
	"github.com/notiplex/notification-platform/internal/workers"
)

const defaultEmailRPS = 10.0

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("email-worker: fatal error", zap.Error(err))
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

	sender := email.New(cfg.Email, defaultEmailRPS)

	hostname, _ := os.Hostname()
	consumerName := fmt.Sprintf("email-worker-%s-%d", hostname, os.Getpid())

	w := workers.NewEmailWorker(st, b, sender, consumerName, logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("email-worker: starting", zap.String("consumer", consumerName))
	w.Run(sigCtx)
	logger.Info("email-worker: stopped")

	return nil
}
