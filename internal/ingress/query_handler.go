package ingress

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/notiplex/notification-platform/internal/models"
	"github.com/notiplex/notification-platform/internal/store"
)

type queryHandler struct {
	store *store.Store
}

// listLogs backs GET /messages/logs, the paginated/filterable query surface
// from spec §5.
func (h *queryHandler) listLogs(c *gin.Context) {
	site := siteFromContext(c)

	filter := store.ListFilter{
		Status:  models.Status(c.Query("status")),
		Channel: models.Channel(c.Query("channel")),
		Limit:   atoiOrDefault(c.Query("limit"), 100),
		Offset:  atoiOrDefault(c.Query("offset"), 0),
	}
	if since := parseTime(c.Query("since")); since != nil {
		filter.Since = since
	}
	if until := parseTime(c.Query("until")); until != nil {
		filter.Until = until
	}

	messages, err := h.store.ListMessages(c.Request.Context(), site.SiteID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// getLog backs GET /messages/logs/:message_id.
func (h *queryHandler) getLog(c *gin.Context) {
	site := siteFromContext(c)
	messageID := c.Param("message_id")

	m, err := h.store.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if m.SiteID != site.SiteID {
		// Don't distinguish "not yours" from "doesn't exist" to a caller.
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// stats backs GET /messages/stats.
func (h *queryHandler) stats(c *gin.Context) {
	site := siteFromContext(c)

	stats, err := h.store.StatsForSite(c.Request.Context(), site.SiteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// summary backs GET /metrics/site/summary — stats phrased as a metrics-shaped
// response distinct from the raw status breakdown stats returns.
func (h *queryHandler) summary(c *gin.Context) {
	site := siteFromContext(c)

	stats, err := h.store.StatsForSite(c.Request.Context(), site.SiteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"siteId":         site.SiteID,
		"successRate":    stats.SuccessRate,
		"averagePerDay":  stats.AveragePerDay,
		"countsByStatus": stats.CountsByStatus,
	})
}

// daily backs GET /metrics/site/daily, defaulting to the trailing 30 days
// when no range is given.
func (h *queryHandler) daily(c *gin.Context) {
	site := siteFromContext(c)

	until := time.Now()
	from := until.AddDate(0, 0, -30)
	if t := parseTime(c.Query("from")); t != nil {
		from = *t
	}
	if t := parseTime(c.Query("until")); t != nil {
		until = *t
	}

	metrics, err := h.store.DailyMetrics(c.Request.Context(), site.SiteID, from, until)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

func atoiOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
