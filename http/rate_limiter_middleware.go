package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware rejects a client once its bucket is empty. Clients are
// keyed by ClientIP, which only follows X-Forwarded-For from trusted proxies.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
