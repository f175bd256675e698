package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	rlog "supermock/pkg/logger"
)

type SessionHandler struct {
	sessions ports.SessionService
}

func NewSessionHandler(sessions ports.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/sessions", h.Create)
	api.GET("/sessions", h.List)

	session := api.Group("/sessions/:id", tagSession)
	session.GET("", h.Get)
	session.POST("/roles", h.AssignRole)
	session.POST("/video-link", h.SetVideoLink)
	session.POST("/status", h.UpdateStatus)
	session.POST("/feedback", h.SubmitFeedback)
}

// tagSession adds the path session id to the request context for logging.
func tagSession(c *gin.Context) {
	c.Request = c.Request.WithContext(rlog.WithSessionID(c.Request.Context(), c.Param("id")))
	c.Next()
}

type assignRoleRequest struct {
	Role domain.Role `json:"role" binding:"required"`
}

type videoLinkRequest struct {
	// Link is optional; empty asks the provider for a room.
	Link string `json:"link"`
}

type statusRequest struct {
	Status domain.SessionStatus `json:"status" binding:"required"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ports.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format")
		return
	}
	req.CreatorID = userID

	session, err := h.sessions.CreateSession(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), domain.SessionID(c.Param("id")), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) AssignRole(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "role is required")
		return
	}

	session, err := h.sessions.AssignRole(c.Request.Context(), domain.SessionID(c.Param("id")), userID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) SetVideoLink(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req videoLinkRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request format")
			return
		}
	}

	session, err := h.sessions.SetVideoLink(c.Request.Context(), domain.SessionID(c.Param("id")), userID, req.Link)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	session, err := h.sessions.UpdateStatus(c.Request.Context(), domain.SessionID(c.Param("id")), userID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) SubmitFeedback(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ports.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format")
		return
	}
	req.SessionID = domain.SessionID(c.Param("id"))
	req.FromUserID = userID

	feedback, err := h.sessions.SubmitFeedback(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, feedback)
}
