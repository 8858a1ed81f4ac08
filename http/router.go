package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine. Simulation routes sit behind limiter when
// it is not nil; health and metrics never do. Forwarded client addresses are
// honoured only from trustedProxies.
func NewRouter(handler *SimulationHandler, limiter *RateLimiter, trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, errors.Wrap(err, "invalid trusted proxies")
	}
	r.Use(gin.Recovery(), requestLogger())

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/")
	if limiter != nil {
		api.Use(RateLimitMiddleware(limiter))
	}
	api.GET("/run-simulation", handler.RunDefault)
	api.POST("/simulations", handler.Create)
	api.GET("/simulations", handler.List)
	api.GET("/simulations/:id", handler.Get)

	return r, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"client_ip": c.ClientIP(),
			"latency":   time.Since(start),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Debug("request served")
		}
	}
}
