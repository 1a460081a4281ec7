// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"billing-service/internal/domain/identity"
)

// MustGetUser gets the caller from context or panics. Only valid behind Auth().
func MustGetUser(c *gin.Context) *identity.User {
	user, ok := GetUser(c)
	if !ok {
		panic("user not found in context")
	}
	return user
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetUser(c)
	return ok
}

// RequestID returns the id assigned by LoggingMiddleware.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
