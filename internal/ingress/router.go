package ingress

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notiplex/notification-platform/internal/auth"
	"github.com/notiplex/notification-platform/internal/bus"
	"github.com/notiplex/notification-platform/internal/store"
)

// NewRouter assembles the gateway's middleware chain and route table.
func NewRouter(st *store.Store, b *bus.Bus, hasher *auth.Hasher, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), ginZapRecovery(logger), metricsMiddleware())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sh := &siteHandler{store: st, hasher: hasher}
	r.POST("/sites/register", sh.register)

	authed := r.Group("/")
	authed.Use(siteAuth(st, hasher))

	mh := &messageHandler{store: st, bus: b, logger: logger}
	authed.POST("/notifications/send", mh.send)
	authed.POST("/notifications/send/bulk", mh.sendBulk)
	authed.POST("/notifications/schedule", mh.schedule)
	authed.POST("/notifications/schedule/bulk", mh.scheduleBulk)

	qh := &queryHandler{store: st}
	authed.GET("/messages/logs", qh.listLogs)
	authed.GET("/messages/logs/:message_id", qh.getLog)
	authed.GET("/messages/stats", qh.stats)
	authed.GET("/metrics/site/summary", qh.summary)
	authed.GET("/metrics/site/daily", qh.daily)

	return r
}

// ginZapRecovery mirrors gin.Recovery but routes the panic through the
// platform's structured logger instead of gin's own stderr writer.
func ginZapRecovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("ingress: recovered from panic", zap.Any("panic", rec), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
