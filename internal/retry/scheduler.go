package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/models"
)

// runSchedulerPass promotes due SCHEDULED messages to PENDING and publishes
// them. A publish failure reverts the individual message back to SCHEDULED
// so the next pass retries it, rather than stranding it as PENDING with
// nothing on the bus.
func (l *Loop) runSchedulerPass(ctx context.Context) {
	due, err := l.store.SelectAndPromoteScheduled(ctx, time.Now(), l.cfg.BatchSize)
	if err != nil {
		l.logger.Error("scheduler pass: failed to select due messages", zap.Error(err))
		return
	}

	for _, m := range due {
		env := bus.Envelope{MessageID: m.MessageID, SiteID: m.SiteID, Channel: string(m.Channel)}
		topic := bus.TopicForChannel(models.Channel(m.Channel))

		if err := l.bus.Publish(ctx, topic, env); err != nil {
			l.logger.Warn("scheduler pass: publish failed, reverting", zap.String("message_id", m.MessageID), zap.Error(err))
			if revertErr := l.store.RevertToScheduled(ctx, m.MessageID, time.Now()); revertErr != nil {
				l.logger.Error("scheduler pass: revert also failed", zap.String("message_id", m.MessageID), zap.Error(revertErr))
			}
			continue
		}
		l.logger.Info("scheduler pass: promoted and published", zap.String("message_id", m.MessageID))
	}
}
