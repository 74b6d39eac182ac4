package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/classify"
	"github.com/notiplex/notification-platform/internal/models"
	"github.com/notiplex/notification-platform/internal/provider"
	"github.com/notiplex/notification-platform/internal/store"
)

// sessionKeyFor derives the session-sequencing key for a site, per spec
// §4.4.2 step 1: the site's named session, else "site:"+site_id, else
// "default".
func sessionKeyFor(site *models.Site) string {
	if site.WhatsAppSessionName != "" {
		return site.WhatsAppSessionName
	}
	if site.SiteID != "" {
		return "site:" + site.SiteID
	}
	return "default"
}

// NewWhatsAppWorker builds a worker consuming bus.TopicWhatsApp. Every
// dispatch is serialized per site's WhatsApp session and spaced by
// interMessageDelay, regardless of how many messages this process has
// in flight for that session concurrently.
func NewWhatsAppWorker(st *store.Store, b *bus.Bus, sender provider.Sender, consumerName string, interMessageDelay time.Duration, logger *zap.Logger) *Worker {
	sessions := newSessionRegistry(interMessageDelay)

	dispatch := func(ctx context.Context, site *models.Site, m *models.MessageLog) (classify.Outcome, error) {
		release := sessions.get(sessionKeyFor(site)).acquire()
		defer release()

		req := provider.SendRequest{
			MessageID:   m.MessageID,
			Recipient:   m.Recipient,
			Body:        m.Body,
			ImageURL:    m.ImageURL,
			VideoURL:    m.VideoURL,
			DocumentURL: m.DocumentURL,
			FileName:    m.FileName,
			Caption:     m.Caption,
			APIKey:      site.WASenderAPIKeyEncrypted,
		}
		return sender.Send(ctx, req)
	}

	return newWorker(st, b, bus.TopicWhatsApp, consumerName, models.SourceWorkerWhatsApp, dispatch, logger)
}
