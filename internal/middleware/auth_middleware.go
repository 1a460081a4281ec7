// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"billing-service/internal/domain/identity"
	"billing-service/internal/pkg/response"
)

const userKey = "user"

type AuthMiddleware struct {
	directory identity.Directory
}

func NewAuthMiddleware(directory identity.Directory) *AuthMiddleware {
	return &AuthMiddleware{
		directory: directory,
	}
}

// Auth validates the bearer token and stores the caller in the context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractBearerToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		user, err := m.directory.VerifyCredential(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// ExtractBearerToken returns the token from an "Authorization: Bearer" header.
func ExtractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetUser returns the authenticated caller, if any.
func GetUser(c *gin.Context) (*identity.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*identity.User)
	return user, ok
}
