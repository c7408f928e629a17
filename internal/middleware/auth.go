package middleware

import (
	"errors"
	"net/http"
	"strings"

	"deenice_finds/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const adminKey = "adminUsername"

// AdminAuth requires a bearer token with a live admin session. A missing header or
// expired session is 401; a token that fails verification is 403.
func AdminAuth(auth domain.AuthUseCase, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Middleware: Authorization header is missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Access token required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			log.Warn("Middleware: Invalid Authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid Authorization header format"})
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			status := http.StatusForbidden
			var aerr *domain.AuthError
			if errors.As(err, &aerr) && (aerr.Code == domain.AuthMissing || aerr.Code == domain.AuthSessionExpired) {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error()})
			return
		}

		c.Set(adminKey, claims.Username)
		c.Next()
	}
}

// AdminUsername returns the admin authenticated by AdminAuth, or "".
func AdminUsername(c *gin.Context) string {
	return c.GetString(adminKey)
}
