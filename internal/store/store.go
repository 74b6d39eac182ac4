// Package store is the Message Store (spec §4.1): the single durable,
// transactional source of truth for sites, message logs, status history,
// and daily metrics. Every write goes through this package; ingress,
// channel workers, and the retry loop share it rather than duplicating
// status-update logic, per design note 9.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors" // v0.9.1
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/notiplex/notification-platform/internal/config"
)

// Sentinel errors mapped to the spec §7 taxonomy by callers.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("message id conflict")
	ErrNotFound     = errors.New("not found")
)

var (
	storeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_store_operations_total",
			Help: "Total number of Message Store operations.",
		},
		[]string{"operation", "outcome"},
	)

	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_store_operation_duration_seconds",
			Help:    "Duration of Message Store operations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Store is the Message Store's public surface, per spec §4.1.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// New wraps an already-open *sql.DB with pooling settings from cfg. It does
// not apply migrations; cmd/ingress calls Migrate before New at startup.
func New(db *sql.DB, cfg config.DatabaseConfig) *Store {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Store{db: db, queryTimeout: timeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

func observe(operation string, start time.Time, err error) {
	storeOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	storeOps.WithLabelValues(operation, outcome).Inc()
}
