// internal/middleware/ratelimit_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"billing-service/internal/pkg/response"
)

// Limiter counts requests per caller and endpoint.
type Limiter interface {
	Allow(ctx context.Context, callerID, endpoint string, maxRequests int64, window time.Duration) (bool, error)
}

// RateLimit rejects callers above maxRequests per window with 429. The caller
// is the authenticated user when known, else the client IP. Limiter errors
// let the request through.
func RateLimit(limiter Limiter, endpoint string, maxRequests int64, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		caller := "ip:" + c.ClientIP()
		if user, ok := GetUser(c); ok {
			caller = user.ID
		}

		allowed, err := limiter.Allow(c.Request.Context(), caller, endpoint, maxRequests, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(c, http.StatusTooManyRequests, "too many requests, try again later", nil)
			return
		}
		c.Next()
	}
}
