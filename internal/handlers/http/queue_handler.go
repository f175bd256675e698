package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/utils"
)

type QueueHandler struct {
	queue ports.QueueService
}

func NewQueueHandler(queue ports.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

func (h *QueueHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/queue/join", h.Join)
	api.GET("/queue/waiting", h.ListWaiting)
}

// Join enqueues the caller. The response carries the created session when
// the join matched right away, or a suggested slot otherwise.
func (h *QueueHandler) Join(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ports.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format")
		return
	}
	req.UserID = userID

	result, err := h.queue.Join(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Queued {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

func (h *QueueHandler) ListWaiting(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	filter := domain.WaitingFilter{
		Role:       domain.Role(c.Query("role")),
		Profession: c.Query("profession"),
		Language:   c.Query("language"),
	}
	if filter.Role != "" && !filter.Role.Decided() {
		badRequest(c, "role must be interviewer or candidate")
		return
	}
	if slot := c.Query("slot_utc"); slot != "" {
		t, err := utils.ParseSlot(slot)
		if err != nil {
			badRequest(c, "slot_utc must be RFC 3339")
			return
		}
		filter.SlotUTC = t
	}

	entries, err := h.queue.ListWaiting(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
