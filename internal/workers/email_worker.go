package workers

import (
	"context"

	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/classify"
	"github.com/notiplex/notification-platform/internal/models"
	"github.com/notiplex/notification-platform/internal/provider"
	"github.com/notiplex/notification-platform/internal/store"
)

// NewEmailWorker builds a worker consuming bus.TopicEmail and dispatching
// through sender, a per-tenant-aware provider.Sender.
func NewEmailWorker(st *store.Store, b *bus.Bus, sender provider.Sender, consumerName string, logger *zap.Logger) *Worker {
	dispatch := func(ctx context.Context, site *models.Site, m *models.MessageLog) (classify.Outcome, error) {
		// The message's own sender wins, then the site's, then the client's
		// process-wide default.
		fromEmail := m.FromEmail
		if fromEmail == "" {
			fromEmail = site.SendGridFromEmail
		}
		fromName := m.FromName
		if fromName == "" {
			fromName = site.SendGridFromName
		}
		req := provider.SendRequest{
			MessageID: m.MessageID,
			Recipient: m.Recipient,
			Subject:   m.Subject,
			Body:      m.Body,
			FromEmail: fromEmail,
			FromName:  fromName,
			IsHTML:    m.IsHTML,
			APIKey:    site.SendGridAPIKeyEncrypted,
		}
		return sender.Send(ctx, req)
	}

	return newWorker(st, b, bus.TopicEmail, consumerName, models.SourceWorkerEmail, dispatch, logger)
}
