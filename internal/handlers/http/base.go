package http

import (
	"github.com/gin-gonic/gin"

	"supermock/internal/core/domain"
	"supermock/internal/infrastructure/middleware"
	"supermock/pkg/errors"
)

// currentUser returns the authenticated caller or attaches UNAUTHORIZED.
func currentUser(c *gin.Context) (domain.UserID, bool) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("authentication required"))
	}
	return userID, ok
}
