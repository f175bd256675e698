package signal

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"supermock/internal/core/domain"
	rlog "supermock/pkg/logger"
)

func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(h.cfg.AllowedOrigins, "*") || lo.Contains(h.cfg.AllowedOrigins, origin)
}

// ServeWS authenticates the caller, upgrades the connection and runs it
// until either side closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		h.logger.Infow("websocket authentication failed", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	c := newClient(h, conn, userID)
	h.register(c)

	ctx := rlog.WithUserID(context.Background(), string(userID))
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump(ctx)
	}()
}

func (h *Hub) authenticate(r *http.Request) (domain.UserID, error) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = r.Header.Get("Authorization")
	}
	if credential == "" && h.cfg.DevMode {
		if userID := strings.TrimSpace(r.URL.Query().Get("user_id")); userID != "" {
			return domain.UserID(userID), nil
		}
	}
	return h.verifier.VerifyIdentity(r.Context(), credential)
}
