// Package workers implements the channel dispatch workers (spec §4.4): they
// pull message references off the bus, load the authoritative row from the
// Message Store, dispatch through a provider.Sender, and record the
// terminal DELIVERED/FAILED outcome. Retry scheduling is the retry loop's
// job, not the worker's: a dispatch failure is recorded as FAILED and
// acked, and the bus delivery is never left pending for that reason.
package workers

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/classify"
	"github.com/notiplex/notification-platform/internal/models"
	"github.com/notiplex/notification-platform/internal/store"
)

// dispatchFunc performs one provider send. Channel workers supply their own
// (the WhatsApp one wraps it with session sequencing); this indirection is
// what lets Worker stay channel-agnostic.
type dispatchFunc func(ctx context.Context, site *models.Site, m *models.MessageLog) (classify.Outcome, error)

// Worker consumes one channel's topic and dispatches each message exactly
// once per delivery, acking regardless of dispatch outcome (only an
// infrastructure failure before a terminal status is recorded leaves a
// delivery unacked for the bus to redeliver).
type Worker struct {
	store        *store.Store
	bus          *bus.Bus
	topic        bus.Topic
	consumerName string
	source       models.Source
	dispatch     dispatchFunc
	logger       *zap.Logger

	pollCount int64
	pollBlock time.Duration
}

func newWorker(st *store.Store, b *bus.Bus, topic bus.Topic, consumerName string, source models.Source, dispatch dispatchFunc, logger *zap.Logger) *Worker {
	return &Worker{
		store:        st,
		bus:          b,
		topic:        topic,
		consumerName: consumerName,
		source:       source,
		dispatch:     dispatch,
		logger:       logger,
		pollCount:    10,
		pollBlock:    2 * time.Second,
	}
}

// Run consumes deliveries until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		deliveries, err := w.bus.Consume(ctx, w.topic, w.consumerName, w.pollCount, w.pollBlock)
		if err != nil {
			w.logger.Error("worker: consume failed", zap.String("topic", string(w.topic)), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, d := range deliveries {
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d bus.Delivery) {
	m, err := w.store.GetMessage(ctx, d.Envelope.MessageID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			w.logger.Error("worker: failed to load message", zap.String("message_id", d.Envelope.MessageID), zap.Error(err))
			return // left unacked; reclaimed and retried once the store recovers
		}
		// The row is gone: nothing useful to retry toward, so ack to stop
		// redelivery of a message this process can never process.
		w.logger.Error("worker: message not found, dropping delivery", zap.String("message_id", d.Envelope.MessageID), zap.Error(err))
		if ackErr := w.bus.Ack(ctx, w.topic, d); ackErr != nil {
			w.logger.Error("worker: failed to ack unreadable delivery", zap.Error(ackErr))
		}
		return
	}

	if m.Status != models.StatusPending {
		// Already handled by another delivery of the same at-least-once
		// message (or a prior crash after dispatch but before ack).
		if ackErr := w.bus.Ack(ctx, w.topic, d); ackErr != nil {
			w.logger.Error("worker: failed to ack already-handled delivery", zap.Error(ackErr))
		}
		return
	}

	if d.Envelope.SiteID == "" || d.Envelope.SiteID != m.SiteID {
		// A payload naming a different (or no) tenant never reaches a provider.
		w.logger.Error("worker: tenant isolation violation", zap.String("message_id", m.MessageID), zap.String("payload_site_id", d.Envelope.SiteID))
		if _, err := w.store.UpdateStatus(ctx, m.MessageID, models.StatusFailed, "tenant isolation violation", w.source, models.FailurePermanent); err != nil {
			w.logger.Error("worker: failed to record failed status", zap.String("message_id", m.MessageID), zap.Error(err))
			return // left unacked; reclaimed and retried once the store recovers
		}
		if ackErr := w.bus.Ack(ctx, w.topic, d); ackErr != nil {
			w.logger.Error("worker: failed to ack", zap.Error(ackErr))
		}
		return
	}

	site, err := w.store.GetSiteByID(ctx, m.SiteID)
	if err != nil {
		w.logger.Error("worker: failed to load site", zap.String("site_id", m.SiteID), zap.Error(err))
		return // left unacked; reclaimed and retried once the store recovers
	}

	outcome, sendErr := w.dispatch(ctx, site, m)

	if outcome.Success {
		// No provider delivery-status webhook exists to later promote
		// SENT -> DELIVERED, so a successful dispatch is recorded as the
		// terminal DELIVERED status directly.
		if _, err := w.store.UpdateStatus(ctx, m.MessageID, models.StatusDelivered, "", w.source, ""); err != nil {
			w.logger.Error("worker: failed to record delivered status", zap.String("message_id", m.MessageID), zap.Error(err))
			return // left unacked; reclaimed and retried once the store recovers
		}
		if ackErr := w.bus.Ack(ctx, w.topic, d); ackErr != nil {
			w.logger.Error("worker: failed to ack", zap.Error(ackErr))
		}
		return
	}

	failureType := classify.Classify(classify.Outcome{
		Success:      false,
		ErrorMessage: outcome.ErrorMessage,
		HTTPStatus:   outcome.HTTPStatus,
		ResponseBody: outcome.ResponseBody,
	})

	errMsg := outcome.ErrorMessage
	if sendErr != nil && errMsg == "" {
		errMsg = sendErr.Error()
	}
	// The response body informs classification only; it is not stored.
	redacted := classify.Redact(errMsg)

	if _, err := w.store.UpdateStatus(ctx, m.MessageID, models.StatusFailed, redacted, w.source, failureType); err != nil {
		w.logger.Error("worker: failed to record failed status", zap.String("message_id", m.MessageID), zap.Error(err))
		return // left unacked; reclaimed and retried once the store recovers
	}
	if ackErr := w.bus.Ack(ctx, w.topic, d); ackErr != nil {
		w.logger.Error("worker: failed to ack", zap.Error(ackErr))
	}
}
