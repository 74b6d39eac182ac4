// Command ingress runs the HTTP gateway: tenant registration, notification
// send/schedule endpoints, and the message-log/metrics query surface.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // v1.10.9, postgres driver
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/auth"
	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/ingress"
	"github.com/notiplex/notification-platform/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("ingress: fatal error", zap.Error(err))
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

	if err := store.Migrate(db, cfg.Database); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
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

	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	router := ingress.NewRouter(st, b, hasher, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("ingress: listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ingress: server error", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	logger.Info("ingress: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	return nil
}
