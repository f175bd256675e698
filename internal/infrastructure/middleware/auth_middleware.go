package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/errors"
	rlog "supermock/pkg/logger"
)

// UserIDKey is the gin context key holding the authenticated domain.UserID.
const UserIDKey = "user_id"

// AuthMiddleware resolves the bearer credential to a user id. In dev mode an
// X-User-ID header is accepted in place of a token.
func AuthMiddleware(verifier ports.IdentityVerifier, devMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" && devMode {
			if userID := strings.TrimSpace(c.GetHeader("X-User-ID")); userID != "" && domain.UserID(userID) != domain.SystemUserID {
				setUser(c, domain.UserID(userID))
				c.Next()
				return
			}
		}

		if authHeader == "" {
			abortUnauthorized(c, "authorization header required")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		userID, err := verifier.VerifyIdentity(c.Request.Context(), parts[1])
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		setUser(c, userID)
		c.Next()
	}
}

func setUser(c *gin.Context, userID domain.UserID) {
	c.Set(UserIDKey, userID)
	c.Request = c.Request.WithContext(rlog.WithUserID(c.Request.Context(), string(userID)))
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   string(errors.ErrCodeUnauthorized),
		"message": message,
	})
}

// CurrentUser returns the user set by AuthMiddleware.
func CurrentUser(c *gin.Context) (domain.UserID, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	userID, ok := v.(domain.UserID)
	return userID, ok && userID != ""
}
