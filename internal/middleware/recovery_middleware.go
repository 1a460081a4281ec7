// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"billing-service/internal/pkg/response"
)

// RecoveryMiddleware turns a handler panic into the standard 500 envelope.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("handler panicked",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("request_id", RequestID(c)),
			zap.Stack("stack"),
		)
		response.Error(c, http.StatusInternalServerError, "internal server error", nil)
	})
}
