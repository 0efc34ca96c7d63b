package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Webhook  *WebhookHandler
	Status   *StatusHandler
	Hold     *HoldHandler
	Checkout *CheckoutHandler
}

// NewRouter mounts every handler that is set. A nil gatherer disables /metrics.
func NewRouter(h Handlers, gatherer prometheus.Gatherer, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	root := router.Group("/")
	if h.Webhook != nil {
		h.Webhook.Register(root)
	}
	if h.Status != nil {
		h.Status.Register(root)
	}
	if h.Hold != nil {
		h.Hold.Register(root)
	}
	if h.Checkout != nil {
		h.Checkout.Register(root)
	}
	return router
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
