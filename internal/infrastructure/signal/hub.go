package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/tracing"
	"supermock/pkg/validation"
)

type HubConfig struct {
	PingInterval  time.Duration
	PongTimeout   time.Duration
	WriteTimeout  time.Duration
	SendBuffer    int
	MaxChatLength int
	MaxNameLength int

	MessagesPerSecond float64
	Burst             int
	MaxMessageBytes   int64

	// DevMode skips room authorization and accepts ?user_id= without a token.
	DevMode        bool
	AllowedOrigins []string
	ICEServers     []webrtc.ICEServer
}

func (c *HubConfig) setDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= c.PingInterval {
		c.PongTimeout = 2 * c.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.MaxChatLength <= 0 {
		c.MaxChatLength = 2000
	}
	if c.MaxNameLength <= 0 {
		c.MaxNameLength = 64
	}
	if c.ICEServers == nil {
		c.ICEServers = []webrtc.ICEServer{}
	}
}

// Hub routes presence, chat and WebRTC signaling between the connections of
// a session room, and delivers dispatcher events on per-user channels.
// With a backplane every delivery is mirrored to the other instances.
type Hub struct {
	cfg        HubConfig
	verifier   ports.IdentityVerifier
	authorizer ports.RoomAuthorizer
	backplane  ports.Backplane
	presence   ports.PresenceRegistry
	metrics    ports.Metrics
	logger     *zap.SugaredLogger
	now        func() time.Time

	mu    sync.RWMutex
	rooms map[domain.SessionID]map[*client]struct{}
	users map[domain.UserID]map[*client]struct{}

	wg sync.WaitGroup
}

// NewHub builds a hub. backplane and presence may be nil on a single instance.
func NewHub(
	cfg HubConfig,
	verifier ports.IdentityVerifier,
	authorizer ports.RoomAuthorizer,
	backplane ports.Backplane,
	presence ports.PresenceRegistry,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
) *Hub {
	cfg.setDefaults()
	return &Hub{
		cfg:        cfg,
		verifier:   verifier,
		authorizer: authorizer,
		backplane:  backplane,
		presence:   presence,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		rooms:      make(map[domain.SessionID]map[*client]struct{}),
		users:      make(map[domain.UserID]map[*client]struct{}),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.users[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.users[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.HubConnectionsChanged(1)
	h.logger.Infow("Client connected", "user_id", c.userID)
}

// unregister leaves every joined room and drops the personal channel.
func (h *Hub) unregister(ctx context.Context, c *client) {
	h.mu.Lock()
	rooms := make([]domain.SessionID, 0, len(c.rooms))
	for sessionID := range c.rooms {
		rooms = append(rooms, sessionID)
	}
	h.mu.Unlock()

	for _, sessionID := range rooms {
		h.leave(ctx, c, sessionID)
	}

	h.mu.Lock()
	if set, ok := h.users[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
	h.mu.Unlock()

	c.close()
	h.metrics.HubConnectionsChanged(-1)
	h.logger.Infow("Client disconnected", "user_id", c.userID)
}

func (h *Hub) handle(ctx context.Context, c *client, msg SignalMessage) {
	ctx, span := tracing.TraceHubMessage(ctx, msg.Type, string(c.userID))
	defer span.End()

	h.metrics.HubMessage(msg.Type)
	if err := validation.Struct(msg); err != nil {
		c.sendError(msg.SessionID, codeBadMessage, err.Error())
		return
	}

	switch msg.Type {
	case msgJoinRoom:
		h.join(ctx, c, msg.SessionID)
	case msgLeaveRoom:
		if !h.leave(ctx, c, msg.SessionID) {
			c.sendError(msg.SessionID, codeNotInRoom, "not in room")
			return
		}
		h.reply(c, typeRoomLeft, msg.SessionID, domain.SessionPayload{SessionID: msg.SessionID})
	case msgChat:
		h.chat(ctx, c, msg)
	case msgOffer, msgAnswer, msgICE:
		h.relay(ctx, c, msg)
	}
}

func (h *Hub) join(ctx context.Context, c *client, sessionID domain.SessionID) {
	if !h.cfg.DevMode {
		ok, err := h.authorizer.CanJoin(ctx, sessionID, c.userID)
		if err != nil {
			tracing.RecordError(ctx, err)
			h.logger.Errorw("Room authorization failed", "session_id", sessionID, "user_id", c.userID, "error", err)
			c.sendError(sessionID, codeInternal, "authorization failed")
			return
		}
		if !ok {
			c.sendError(sessionID, codeJoinDenied, domain.ErrJoinDenied.Error())
			return
		}
	}

	h.mu.Lock()
	_, already := c.rooms[sessionID]
	firstForUser := !h.userInRoomLocked(sessionID, c.userID)
	if !already {
		set, ok := h.rooms[sessionID]
		if !ok {
			set = make(map[*client]struct{})
			h.rooms[sessionID] = set
		}
		set[c] = struct{}{}
		c.rooms[sessionID] = struct{}{}
	}
	h.mu.Unlock()

	if !already && h.presence != nil {
		if err := h.presence.Join(ctx, sessionID, c.userID); err != nil {
			h.logger.Warnw("Failed to record presence", "session_id", sessionID, "user_id", c.userID, "error", err)
		}
	}

	h.reply(c, typeRoomJoined, sessionID, RoomJoinedPayload{
		SessionID:  sessionID,
		Members:    h.members(ctx, sessionID),
		ICEServers: h.cfg.ICEServers,
	})

	if firstForUser {
		h.publishEvent(ctx, ports.Envelope{SessionID: sessionID, Exclude: c.userID}, domain.EventPresenceUpdate,
			domain.PresencePayload{UserID: c.userID, Joined: true, At: h.now()})
	}
	h.logger.Infow("Client joined room", "session_id", sessionID, "user_id", c.userID)
}

// leave reports whether the connection was in the room.
func (h *Hub) leave(ctx context.Context, c *client, sessionID domain.SessionID) bool {
	h.mu.Lock()
	if _, ok := c.rooms[sessionID]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(c.rooms, sessionID)
	if set, ok := h.rooms[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	lastForUser := !h.userInRoomLocked(sessionID, c.userID)
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.Leave(ctx, sessionID, c.userID); err != nil {
			h.logger.Warnw("Failed to clear presence", "session_id", sessionID, "user_id", c.userID, "error", err)
		}
	}
	if lastForUser {
		h.publishEvent(ctx, ports.Envelope{SessionID: sessionID, Exclude: c.userID}, domain.EventPresenceUpdate,
			domain.PresencePayload{UserID: c.userID, Joined: false, At: h.now()})
	}
	h.logger.Infow("Client left room", "session_id", sessionID, "user_id", c.userID)
	return true
}

func (h *Hub) chat(ctx context.Context, c *client, msg SignalMessage) {
	if !h.inRoom(c, msg.SessionID) {
		c.sendError(msg.SessionID, codeNotInRoom, "join the room first")
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.sendError(msg.SessionID, codeBadMessage, "invalid chat payload")
		return
	}
	text := strings.TrimSpace(req.Message)
	if err := validation.ValidateStringLength("message", text, 1, h.cfg.MaxChatLength); err != nil {
		c.sendError(msg.SessionID, codeBadMessage, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = string(c.userID)
	}

	h.publishEvent(ctx, ports.Envelope{SessionID: msg.SessionID}, domain.EventChatMessage, domain.ChatPayload{
		User:    validation.TruncateRunes(name, h.cfg.MaxNameLength),
		UserID:  c.userID,
		Message: text,
		At:      h.now(),
	})
}

// relay forwards an opaque WebRTC payload to the target user, or to every
// other member when no target is given.
func (h *Hub) relay(ctx context.Context, c *client, msg SignalMessage) {
	if !h.inRoom(c, msg.SessionID) {
		c.sendError(msg.SessionID, codeNotInRoom, "join the room first")
		return
	}
	if err := checkSignalPayload(msg.Type, msg.Payload); err != nil {
		c.sendError(msg.SessionID, codeBadMessage, err.Error())
		return
	}
	if msg.Target == c.userID {
		return
	}

	env := ports.Envelope{SessionID: msg.SessionID, UserID: msg.Target}
	if msg.Target == "" {
		env.Exclude = c.userID
	}
	h.publishEvent(ctx, env, domain.EventType(msg.Type), domain.SignalPayload{
		From:    c.userID,
		Target:  msg.Target,
		Payload: msg.Payload,
	})
}

// Deliver sends event on the user's personal channel. Offline users are
// a no-op.
func (h *Hub) Deliver(ctx context.Context, userID domain.UserID, event domain.Event) error {
	return h.publish(ctx, ports.Envelope{UserID: userID}, event)
}

// Broadcast sends event to every member of the session room.
func (h *Hub) Broadcast(ctx context.Context, sessionID domain.SessionID, event domain.Event) error {
	return h.publish(ctx, ports.Envelope{SessionID: sessionID}, event)
}

func (h *Hub) publishEvent(ctx context.Context, env ports.Envelope, t domain.EventType, payload interface{}) {
	event, err := domain.NewEvent(t, env.SessionID, payload, h.now())
	if err != nil {
		h.logger.Errorw("Failed to encode hub event", "type", t, "error", err)
		return
	}
	if err := h.publish(ctx, env, event); err != nil {
		h.logger.Warnw("Hub delivery failed", "type", t, "session_id", env.SessionID, "error", err)
	}
}

func (h *Hub) publish(ctx context.Context, env ports.Envelope, event domain.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	env.Message = raw
	h.deliverLocal(env)

	if h.backplane == nil {
		return nil
	}
	if err := h.backplane.Publish(ctx, env); err != nil {
		h.logger.Warnw("Backplane publish failed", "session_id", env.SessionID, "user_id", env.UserID, "error", err)
		return err
	}
	return nil
}

// deliverLocal writes env to the matching connections of this instance.
func (h *Hub) deliverLocal(env ports.Envelope) {
	h.mu.RLock()
	var targets []*client
	switch {
	case env.SessionID != "":
		for c := range h.rooms[env.SessionID] {
			if env.UserID != "" && c.userID != env.UserID {
				continue
			}
			if env.Exclude != "" && c.userID == env.Exclude {
				continue
			}
			targets = append(targets, c)
		}
	case env.UserID != "":
		for c := range h.users[env.UserID] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(env.Message)
	}
}

// RunBackplane delivers envelopes from other instances until ctx is done.
func (h *Hub) RunBackplane(ctx context.Context) error {
	if h.backplane == nil {
		<-ctx.Done()
		return nil
	}
	err := h.backplane.Subscribe(ctx, h.deliverLocal)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) members(ctx context.Context, sessionID domain.SessionID) []domain.UserID {
	if h.presence != nil {
		members, err := h.presence.Members(ctx, sessionID)
		if err == nil {
			return members
		}
		h.logger.Warnw("Presence lookup failed, using local members", "session_id", sessionID, "error", err)
	}
	return h.LocalMembers(sessionID)
}

// LocalMembers lists users connected to the room on this instance, sorted.
func (h *Hub) LocalMembers(sessionID domain.SessionID) []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[domain.UserID]struct{})
	members := make([]domain.UserID, 0)
	for c := range h.rooms[sessionID] {
		if _, ok := seen[c.userID]; ok {
			continue
		}
		seen[c.userID] = struct{}{}
		members = append(members, c.userID)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// ConnectionCount returns the number of open connections on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

func (h *Hub) inRoom(c *client, sessionID domain.SessionID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[sessionID]
	return ok
}

func (h *Hub) userInRoomLocked(sessionID domain.SessionID, userID domain.UserID) bool {
	for c := range h.rooms[sessionID] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) reply(c *client, t domain.EventType, sessionID domain.SessionID, payload interface{}) {
	event, err := domain.NewEvent(t, sessionID, payload, h.now())
	if err != nil {
		h.logger.Errorw("Failed to encode reply", "type", t, "error", err)
		return
	}
	c.sendEvent(event)
}

// Close disconnects every client and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.RLock()
	var clients []*client
	for _, set := range h.users {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
	h.wg.Wait()
}
