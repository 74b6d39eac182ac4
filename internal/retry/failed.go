package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/models"
)

// runRetryPass locks a batch of FAILED messages, decides per-row whether to
// republish or route to a channel's dead-letter topic, commits every
// decision in one transaction, and only then touches the bus — a publish
// failure after commit is compensated with Store.UndoRepublish rather than
// left to desync the row from reality.
func (l *Loop) runRetryPass(ctx context.Context) {
	batch, err := l.store.SelectFailedBatch(ctx, l.cfg.BatchSize)
	if err != nil {
		l.logger.Error("retry pass: failed to select failed batch", zap.Error(err))
		return
	}

	var toPublish []*models.MessageLog
	var toDLQ []*models.MessageLog

	for _, m := range batch.Rows {
		policy, dlqImmediate := PolicyFor(l.cfg, m.FailureType)

		switch {
		case dlqImmediate:
			if err := batch.RouteToDLQ(m.MessageID, "permanent failure, routed to dead-letter"); err != nil {
				l.logger.Error("retry pass: failed to mark dlq route", zap.String("message_id", m.MessageID), zap.Error(err))
				continue
			}
			toDLQ = append(toDLQ, m)
		case ExceededMaxAttempts(policy, m.RetryCount):
			note := fmt.Sprintf("exceeded max attempts (%d), routed to dead-letter", policy.MaxAttempts)
			if err := batch.RouteToDLQ(m.MessageID, note); err != nil {
				l.logger.Error("retry pass: failed to mark dlq route", zap.String("message_id", m.MessageID), zap.Error(err))
				continue
			}
			toDLQ = append(toDLQ, m)
		case Due(policy, m.RetryCount, m.UpdatedAt, time.Now()):
			if err := batch.Republish(m.MessageID); err != nil {
				l.logger.Error("retry pass: failed to mark republish", zap.String("message_id", m.MessageID), zap.Error(err))
				continue
			}
			toPublish = append(toPublish, m)
		default:
			// not yet due; left FAILED, revisited next cycle.
		}
	}

	if err := batch.Commit(); err != nil {
		l.logger.Error("retry pass: failed to commit batch", zap.Error(err))
		return
	}

	for _, m := range toPublish {
		env := bus.Envelope{MessageID: m.MessageID, SiteID: m.SiteID, Channel: string(m.Channel)}
		topic := bus.TopicForChannel(models.Channel(m.Channel))

		if err := l.bus.Publish(ctx, topic, env); err != nil {
			l.logger.Warn("retry pass: republish failed, undoing", zap.String("message_id", m.MessageID), zap.Error(err))
			if undoErr := l.store.UndoRepublish(ctx, m.MessageID); undoErr != nil {
				l.logger.Error("retry pass: undo also failed", zap.String("message_id", m.MessageID), zap.Error(undoErr))
			}
			continue
		}
		l.logger.Info("retry pass: republished", zap.String("message_id", m.MessageID), zap.Int("retry_count", m.RetryCount+1))
	}

	for _, m := range toDLQ {
		rec := bus.DLQRecord{
			Envelope:             bus.Envelope{MessageID: m.MessageID, SiteID: m.SiteID, Channel: string(m.Channel)},
			TerminalError:        m.ErrorMessage,
			Classification:       string(m.FailureType),
			RetryCountAtTerminus: m.RetryCount,
		}
		dlqTopic := bus.DLQFor(bus.TopicForChannel(models.Channel(m.Channel)))

		if err := l.bus.PublishDLQ(ctx, dlqTopic, rec); err != nil {
			l.logger.Error("retry pass: failed to publish to dead-letter topic", zap.String("message_id", m.MessageID), zap.Error(err))
		}
	}
}
