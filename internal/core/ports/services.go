package ports

import (
	"context"
	"time"

	"supermock/internal/core/domain"
)

type JoinRequest struct {
	UserID     domain.UserID `json:"-" validate:"required"`
	Role       domain.Role   `json:"role" validate:"required,oneof=interviewer candidate"`
	SlotUTC    time.Time     `json:"slot_utc" validate:"minute"`
	Profession string        `json:"profession" validate:"key,max=64"`
	Language   string        `json:"language" validate:"key,max=32"`
}

type QueueService interface {
	Join(ctx context.Context, req JoinRequest) (*domain.JoinResult, error)
	ListWaiting(ctx context.Context, filter domain.WaitingFilter) ([]domain.QueueEntry, error)
}

type MatchingService interface {
	// AttemptMatch pairs at most one candidate with one interviewer for key.
	// A nil session with a nil error means no compatible pair exists.
	AttemptMatch(ctx context.Context, key domain.QueueKey) (*domain.Session, error)
	// Drain matches every waiting key until no pair is left and returns
	// the number of sessions created.
	Drain(ctx context.Context) (int, error)
}

type CreateSessionRequest struct {
	CreatorID  domain.UserID `json:"-" validate:"required"`
	SlotUTC    time.Time     `json:"slot_utc" validate:"minute"`
	Profession string        `json:"profession" validate:"key,max=64"`
	Language   string        `json:"language" validate:"key,max=32"`
	// Role optionally assigns the creator right away.
	Role domain.Role `json:"role" validate:"omitempty,oneof=interviewer candidate observer"`
}

type FeedbackRequest struct {
	SessionID  domain.SessionID `json:"-" validate:"required"`
	FromUserID domain.UserID    `json:"-" validate:"required"`
	Ratings    map[string]int   `json:"ratings" validate:"required,min=1,max=20,dive,keys,required,max=64,endkeys,min=1,max=5"`
	Comments   string           `json:"comments" validate:"max=4000"`
}

type SessionService interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID domain.SessionID, requesterID domain.UserID) (*domain.Session, error)
	ListSessions(ctx context.Context, userID domain.UserID) ([]*domain.Session, error)
	AssignRole(ctx context.Context, sessionID domain.SessionID, userID domain.UserID, role domain.Role) (*domain.Session, error)
	UpdateStatus(ctx context.Context, sessionID domain.SessionID, requesterID domain.UserID, status domain.SessionStatus) (*domain.Session, error)
	SetVideoLink(ctx context.Context, sessionID domain.SessionID, requesterID domain.UserID, manualLink string) (*domain.Session, error)
	SubmitFeedback(ctx context.Context, req FeedbackRequest) (*domain.Feedback, error)
}

type NotificationService interface {
	List(ctx context.Context, userID domain.UserID) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID domain.UserID, id string) error
}

type ProfileService interface {
	ProfileProvider
	SetTools(ctx context.Context, userID domain.UserID, tools []string) (domain.UserState, error)
}

type AuthService interface {
	IdentityVerifier
	IssueToken(userID domain.UserID, name string) (string, error)
}
