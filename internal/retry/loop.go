package retry

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3" // v3.0.1
	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/config"
	"github.com/notiplex/notification-platform/internal/store"
)

// Loop drives the scheduler and retry passes on a fixed interval, per spec
// §4.5. It is the only component in the platform authorized to promote
// SCHEDULED messages or republish FAILED ones.
type Loop struct {
	store  *store.Store
	bus    *bus.Bus
	cfg    config.RetryConfig
	logger *zap.Logger
	cron   *cron.Cron
}

// New builds a Loop. Call Start to begin running passes on
// cfg.IntervalSeconds; call Stop to drain in-flight passes before shutdown.
func New(st *store.Store, b *bus.Bus, cfg config.RetryConfig, logger *zap.Logger) *Loop {
	return &Loop{
		store:  st,
		bus:    b,
		cfg:    cfg,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules both passes and begins running them in the background.
func (l *Loop) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %ds", l.cfg.IntervalSeconds)

	if _, err := l.cron.AddFunc(spec, func() { l.runSchedulerPass(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule scheduler pass: %w", err)
	}
	if _, err := l.cron.AddFunc(spec, func() { l.runRetryPass(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule retry pass: %w", err)
	}

	l.cron.Start()
	return nil
}

// Stop waits for any pass already running to finish, then halts scheduling.
func (l *Loop) Stop() {
	<-l.cron.Stop().Done()
}

// RunOnce executes one scheduler pass and one retry pass synchronously,
// useful for a manual admin trigger or a test harness that doesn't want to
// wait on cron's clock.
func (l *Loop) RunOnce(ctx context.Context) {
	l.runSchedulerPass(ctx)
	l.runRetryPass(ctx)
}
