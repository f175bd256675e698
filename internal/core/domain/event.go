package domain

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventMatchFound         EventType = "match_found"
	EventRoleSelected       EventType = "role_selected"
	EventVideoLinkUpdated   EventType = "video_link_updated"
	EventFeedbackRequired   EventType = "feedback_required"
	EventSessionCompleted   EventType = "session_completed"
	EventBothSidesSubmitted EventType = "both_sides_submitted"
	EventPresenceUpdate     EventType = "presence_update"
	EventChatMessage        EventType = "chat_message"
	EventWebRTCOffer        EventType = "webrtc_offer"
	EventWebRTCAnswer       EventType = "webrtc_answer"
	EventWebRTCICE          EventType = "webrtc_ice"
)

// Event is a domain event on its way to a personal channel or a room.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID SessionID       `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	At        time.Time       `json:"at"`
}

// NewEvent marshals payload into an Event.
func NewEvent(t EventType, sessionID SessionID, payload interface{}, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, SessionID: sessionID, Payload: raw, At: at}, nil
}

type MatchFoundPayload struct {
	SessionID  SessionID `json:"sessionId"`
	RoomID     string    `json:"roomId"`
	SlotUTC    time.Time `json:"slotUtc"`
	Role       Role      `json:"role"`
	Profession string    `json:"profession,omitempty"`
	Language   string    `json:"language,omitempty"`
	Tools      []string  `json:"tools"`
}

type RoleSelectedPayload struct {
	SessionID SessionID `json:"sessionId"`
	UserID    UserID    `json:"userId"`
	Role      Role      `json:"role"`
}

type VideoLinkUpdatedPayload struct {
	SessionID       SessionID       `json:"sessionId"`
	VideoLink       string          `json:"videoLink,omitempty"`
	VideoLinkStatus VideoLinkStatus `json:"videoLinkStatus"`
}

type SessionPayload struct {
	SessionID SessionID `json:"sessionId"`
}

type PresencePayload struct {
	UserID UserID    `json:"userId"`
	Joined bool      `json:"joined"`
	At     time.Time `json:"at"`
}

type ChatPayload struct {
	User    string    `json:"user"`
	UserID  UserID    `json:"userId"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// SignalPayload carries an opaque WebRTC negotiation blob.
type SignalPayload struct {
	From    UserID          `json:"from"`
	Target  UserID          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type NotificationStatus string

const (
	NotificationActive NotificationStatus = "active"
	NotificationRead   NotificationStatus = "read"
)

// Notification is the persisted copy of a user-directed event.
type Notification struct {
	ID        string             `json:"id"`
	UserID    UserID             `json:"user_id"`
	Type      EventType          `json:"type"`
	Payload   json.RawMessage    `json:"payload"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// Expired reports whether the notification is past its expiry at now.
func (n Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}
