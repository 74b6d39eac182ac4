package ingress

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror" // v1.1.1
	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/models"
	"github.com/notiplex/notification-platform/internal/store"
)

const maxBulkSize = 1000

type messageHandler struct {
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger
}

// send accepts a single notification for immediate delivery.
func (h *messageHandler) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	site := siteFromContext(c)
	m := req.toMessageLog(site.SiteID)
	if err := m.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.createAndPublish(c.Request.Context(), m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"messageId": m.MessageID, "status": string(m.Status)})
}

// schedule accepts a single notification for future delivery.
func (h *messageHandler) schedule(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ScheduledAt == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledAt is required"})
		return
	}

	site := siteFromContext(c)
	m := req.toMessageLog(site.SiteID)
	if err := m.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A caller hitting /schedule always means SCHEDULED, even if scheduledAt
	// is now or a hair in the past by the time this runs: InitialStatus's
	// now-comparison only matters for immediate /send requests, and using it
	// here would strand a borderline request at PENDING with nothing to
	// publish it. The scheduler pass promotes on the very next cycle since
	// its due-check is scheduled_at <= now.
	m.Status = models.StatusScheduled

	// A SCHEDULED message is only published once the retry loop promotes it;
	// CreateMessage alone is enough here.
	if err := h.store.CreateMessage(c.Request.Context(), m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"messageId": m.MessageID, "status": string(m.Status), "scheduledAt": m.ScheduledAt})
}

// sendBulk and scheduleBulk accept a list of notifications and process each
// independently, aggregating any per-item failures with go-multierror so
// the caller sees every problem in one response rather than just the first.

func (h *messageHandler) sendBulk(c *gin.Context) {
	h.bulk(c, false)
}

func (h *messageHandler) scheduleBulk(c *gin.Context) {
	h.bulk(c, true)
}

func (h *messageHandler) bulk(c *gin.Context, requireSchedule bool) {
	var reqs []sendRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}
	if len(reqs) > maxBulkSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch exceeds maximum size"})
		return
	}

	site := siteFromContext(c)
	accepted := make([]string, 0, len(reqs))
	var result *multierror.Error

	for i, req := range reqs {
		if requireSchedule && req.ScheduledAt == nil {
			result = multierror.Append(result, indexedErr(i, "scheduledAt is required"))
			continue
		}

		m := req.toMessageLog(site.SiteID)
		if err := m.Validate(); err != nil {
			result = multierror.Append(result, indexedErr(i, err.Error()))
			continue
		}
		if requireSchedule {
			// See the single-item schedule handler: force SCHEDULED rather
			// than trusting InitialStatus's now-comparison.
			m.Status = models.StatusScheduled
		}

		var err error
		if requireSchedule {
			err = h.store.CreateMessage(c.Request.Context(), m)
		} else {
			err = h.createAndPublish(c.Request.Context(), m)
		}
		if err != nil {
			result = multierror.Append(result, indexedErr(i, err.Error()))
			continue
		}
		accepted = append(accepted, m.MessageID)
	}

	resp := gin.H{"accepted": accepted, "acceptedCount": len(accepted)}
	if result != nil && len(result.Errors) > 0 {
		resp["errors"] = bulkErrorItems(result)
		c.JSON(http.StatusMultiStatus, resp)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func bulkErrorItems(result *multierror.Error) []gin.H {
	items := make([]gin.H, 0, len(result.Errors))
	for _, e := range result.Errors {
		if be, ok := e.(*bulkItemError); ok {
			items = append(items, gin.H{"index": be.Index, "error": be.Message})
			continue
		}
		items = append(items, gin.H{"error": e.Error()})
	}
	return items
}

func indexedErr(i int, msg string) error {
	return &bulkItemError{Index: i, Message: msg}
}

type bulkItemError struct {
	Index   int
	Message string
}

func (e *bulkItemError) Error() string {
	return e.Message
}

// createAndPublish persists an immediately-deliverable message and publishes
// it to the bus. A publish failure here leaves the row PENDING (not FAILED)
// in the Message Store, so the retry loop's failed-batch pass won't pick it
// up automatically; the caller sees the error and can retry the request.
func (h *messageHandler) createAndPublish(ctx context.Context, m *models.MessageLog) error {
	if err := h.store.CreateMessage(ctx, m); err != nil {
		return err
	}
	if m.Status != models.StatusPending {
		return nil
	}

	env := bus.Envelope{MessageID: m.MessageID, SiteID: m.SiteID, Channel: string(m.Channel)}
	if err := h.bus.Publish(ctx, bus.TopicForChannel(m.Channel), env); err != nil {
		h.logger.Error("ingress: publish failed after create", zap.String("message_id", m.MessageID), zap.Error(err))
		return err
	}
	return nil
}
