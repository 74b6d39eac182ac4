// Package ingress is the HTTP gateway (spec §5): tenant-authenticated REST
// endpoints for sending, scheduling, and querying notifications.
package ingress

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin" // v1.9.1
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/notiplex/notification-platform/internal/auth"
	"github.com/notiplex/notification-platform/internal/models"
	"github.com/notiplex/notification-platform/internal/store"
)

const siteContextKey = "site"

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingress_request_duration_seconds",
			Help:    "Duration of ingress HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_requests_total",
			Help: "Total number of ingress HTTP requests.",
		},
		[]string{"route", "status"},
	)
)

// requestID stamps every request with an X-Request-ID, generating one when
// the caller didn't supply it, so it can be correlated across logs.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// metricsMiddleware records request duration and outcome per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := http.StatusText(c.Writer.Status())
		requestDuration.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
		requestTotal.WithLabelValues(route, status).Inc()
	}
}

// siteAuth verifies the X-Site-Key header against the tenant's stored bcrypt
// hash and attaches the resolved *models.Site to the request context. The
// raw key carries its site id as a prefix (auth.FormatKey) purely so this
// middleware can find which site's hash to compare against: the secret
// half still has to match for the request to be authorized.
func siteAuth(st *store.Store, hasher *auth.Hasher) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Site-Key")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-Site-Key header"})
			return
		}

		siteID, secret, err := auth.ParseKey(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed api key"})
			return
		}

		site, err := st.GetSiteByID(c.Request.Context(), siteID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}

		if !site.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "site is inactive"})
			return
		}

		if err := hasher.Verify(site.APIKeyHash, secret); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}

		c.Set(siteContextKey, site)
		c.Next()
	}
}

func siteFromContext(c *gin.Context) *models.Site {
	v, ok := c.Get(siteContextKey)
	if !ok {
		return nil
	}
	site, _ := v.(*models.Site)
	return site
}
