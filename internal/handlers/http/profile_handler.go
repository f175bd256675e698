package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supermock/internal/core/ports"
)

type ProfileHandler struct {
	profiles ports.ProfileService
}

func NewProfileHandler(profiles ports.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/profile/tools", h.Tools)
	api.PUT("/profile/tools", h.SetTools)
}

type toolsRequest struct {
	Tools []string `json:"tools" binding:"required"`
}

func (h *ProfileHandler) Tools(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	tools, err := h.profiles.Tools(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "tools": tools})
}

// SetTools replaces the caller's declared tools.
func (h *ProfileHandler) SetTools(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req toolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "tools is required")
		return
	}

	state, err := h.profiles.SetTools(c.Request.Context(), userID, req.Tools)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": state.UserID, "tools": state.Tools})
}
