package ports

import (
	"context"
	"encoding/json"
	"time"

	"supermock/internal/core/domain"
)

// RoomProvider creates, validates and inspects video rooms.
type RoomProvider interface {
	CreateRoom(ctx context.Context, summary string, start time.Time, durationMinutes int) (string, error)
	ValidateRoomURL(ctx context.Context, url string) (domain.LinkCheck, error)
	RoomStatus(ctx context.Context, url string) (domain.RoomState, error)
}

// ProfileProvider returns a user's declared skills and tools.
type ProfileProvider interface {
	Tools(ctx context.Context, userID domain.UserID) ([]string, error)
}

// IdentityVerifier turns a credential into a user id.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, credential string) (domain.UserID, error)
}

// Notifier delivers an event on a user's personal channel.
type Notifier interface {
	Deliver(ctx context.Context, userID domain.UserID, event domain.Event) error
}

// RoomBroadcaster delivers an event to every member of a session room.
type RoomBroadcaster interface {
	Broadcast(ctx context.Context, sessionID domain.SessionID, event domain.Event) error
}

// EventPublisher fans domain events out. Delivery is fire-and-forget:
// failures are logged and never reported to the caller.
type EventPublisher interface {
	NotifyUser(ctx context.Context, userID domain.UserID, event domain.Event)
	NotifyRoom(ctx context.Context, sessionID domain.SessionID, event domain.Event)
}

// RoomAuthorizer decides who may join a session room.
type RoomAuthorizer interface {
	CanJoin(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (bool, error)
}

// RoomAuthorizerFunc adapts a function to RoomAuthorizer.
type RoomAuthorizerFunc func(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (bool, error)

func (f RoomAuthorizerFunc) CanJoin(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (bool, error) {
	return f(ctx, sessionID, userID)
}

// Locker grants a cluster-wide lock. A nil release with a nil error means
// the lock is held elsewhere.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Envelope is a hub delivery shared between instances.
type Envelope struct {
	Origin    string           `json:"origin"`
	SessionID domain.SessionID `json:"session_id,omitempty"`
	// UserID targets a personal channel, or a single member of the room when
	// SessionID is also set.
	UserID domain.UserID `json:"user_id,omitempty"`
	// Exclude skips every connection of this user.
	Exclude domain.UserID   `json:"exclude,omitempty"`
	Message json.RawMessage `json:"message"`
}

// Backplane carries hub deliveries between instances.
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks delivering envelopes published by other instances
	// until ctx is done.
	Subscribe(ctx context.Context, handler func(Envelope)) error
	InstanceID() string
}

// PresenceRegistry tracks room membership across instances.
type PresenceRegistry interface {
	Join(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error
	Leave(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error
	Members(ctx context.Context, sessionID domain.SessionID) ([]domain.UserID, error)
}

// Metrics records domain counters and timings.
type Metrics interface {
	QueueJoined(role domain.Role, outcome string)
	MatchCreated(latency time.Duration)
	MatchAborted(reason string)
	SessionStatusChanged(to domain.SessionStatus)
	VideoLinkResult(status domain.VideoLinkStatus)
	FeedbackSubmitted()
	EventDispatched(eventType domain.EventType, ok bool)
	SweepCompleted(expired, matched, purged int, duration time.Duration)
	HubConnectionsChanged(delta int)
	HubMessage(messageType string)
}

// LinkValidator checks a user-supplied room link without provisioning.
type LinkValidator interface {
	Check(url string) domain.LinkCheck
}
