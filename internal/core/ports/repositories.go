package ports

import (
	"context"
	"time"

	"supermock/internal/core/domain"
)

// Store is the persistence boundary. Atomic runs fn in one serializable
// transaction: either every write made through repos commits or none does.
// Repositories obtained outside Atomic must not be used inside fn.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Repositories() Repositories
	HealthCheck(ctx context.Context) error
	Close() error
}

type Repositories struct {
	Queue         QueueRepository
	Sessions      SessionRepository
	Matches       MatchRepository
	RoleHistory   RoleHistoryRepository
	Users         UserStateRepository
	Feedback      FeedbackRepository
	Notifications NotificationRepository
}

type QueueRepository interface {
	// Insert stores a new waiting entry and assigns its Seq. It fails with
	// domain.ErrDuplicateEntry when the user already waits for role and slot.
	Insert(ctx context.Context, entry *domain.QueueEntry) error
	FindWaiting(ctx context.Context, userID domain.UserID, role domain.Role, slot time.Time) (*domain.QueueEntry, error)
	// ListWaiting returns waiting entries in FIFO order. Role and SlotUTC are
	// applied exactly; profession and language are left to the caller.
	ListWaiting(ctx context.Context, filter domain.WaitingFilter) ([]domain.QueueEntry, error)
	// MarkMatched and MarkExpired are all-or-nothing and fail with
	// domain.ErrInvalidTransition if any id is not currently waiting.
	MarkMatched(ctx context.Context, ids ...string) error
	MarkExpired(ctx context.Context, ids ...string) error
	WaitingKeys(ctx context.Context) ([]domain.QueueKey, error)
	ListStale(ctx context.Context, slotBefore time.Time) ([]domain.QueueEntry, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
	ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Session, error)
}

type MatchRepository interface {
	Create(ctx context.Context, match *domain.Match) error
	GetBySession(ctx context.Context, sessionID domain.SessionID) (*domain.Match, error)
}

type RoleHistoryRepository interface {
	Append(ctx context.Context, assignment *domain.RoleAssignment) error
	// LastDecided returns the most recent interviewer/candidate assignment of
	// userID in any session other than exclude, or nil.
	LastDecided(ctx context.Context, userID domain.UserID, exclude domain.SessionID) (*domain.RoleAssignment, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]domain.RoleAssignment, error)
}

type UserStateRepository interface {
	// Get returns domain.NewUserState for unknown users.
	Get(ctx context.Context, userID domain.UserID) (domain.UserState, error)
	Save(ctx context.Context, state domain.UserState) error
}

type FeedbackRepository interface {
	// Create fails with domain.ErrDuplicateFeedback on a second submission
	// by the same user for the same session.
	Create(ctx context.Context, feedback *domain.Feedback) error
	ListBySession(ctx context.Context, sessionID domain.SessionID) ([]domain.Feedback, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListActive(ctx context.Context, userID domain.UserID, now time.Time) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID domain.UserID, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
