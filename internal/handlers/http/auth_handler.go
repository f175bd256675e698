package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/errors"
	"supermock/pkg/validation"
)

// AuthHandler issues tokens for local development. Production identities
// come from the external identity provider.
type AuthHandler struct {
	authService ports.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService ports.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/dev-token", h.DevToken)
	}
}

type DevTokenRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name" binding:"max=64"`
}

func (h *AuthHandler) DevToken(c *gin.Context) {
	var req DevTokenRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewInvalidInputError("invalid request format"))
			return
		}
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}
	if err := validation.ValidateID("user_id", req.UserID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if domain.UserID(req.UserID) == domain.SystemUserID {
		c.Error(errors.NewInvalidInputError("user_id is reserved"))
		return
	}

	token, err := h.authService.IssueToken(domain.UserID(req.UserID), strings.TrimSpace(req.Name))
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to generate token", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":      req.UserID,
		"access_token": token,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
