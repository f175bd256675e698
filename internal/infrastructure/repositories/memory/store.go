package memory

import (
	"context"
	"sync"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
)

// state is everything the store holds. Atomic works on a deep copy and swaps
// it in on success, so a failed transaction leaves no trace.
type state struct {
	seq           int64
	queue         map[string]domain.QueueEntry
	sessions      map[domain.SessionID]domain.Session
	matches       map[string]domain.Match
	roles         []domain.RoleAssignment
	users         map[domain.UserID]domain.UserState
	feedback      map[string]domain.Feedback
	notifications map[string]domain.Notification
}

func newState() *state {
	return &state{
		queue:         make(map[string]domain.QueueEntry),
		sessions:      make(map[domain.SessionID]domain.Session),
		matches:       make(map[string]domain.Match),
		users:         make(map[domain.UserID]domain.UserState),
		feedback:      make(map[string]domain.Feedback),
		notifications: make(map[string]domain.Notification),
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:           s.seq,
		queue:         make(map[string]domain.QueueEntry, len(s.queue)),
		sessions:      make(map[domain.SessionID]domain.Session, len(s.sessions)),
		matches:       make(map[string]domain.Match, len(s.matches)),
		roles:         append([]domain.RoleAssignment(nil), s.roles...),
		users:         make(map[domain.UserID]domain.UserState, len(s.users)),
		feedback:      make(map[string]domain.Feedback, len(s.feedback)),
		notifications: make(map[string]domain.Notification, len(s.notifications)),
	}
	for k, v := range s.queue {
		c.queue[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v.Clone()
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v.Clone()
	}
	for k, v := range s.feedback {
		c.feedback[k] = v.Clone()
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	return c
}

func (s *state) nextSeq() int64 {
	s.seq++
	return s.seq
}

// access runs fn against a state under whatever locking the caller provides.
type access func(fn func(st *state) error) error

// Store is the in-process adapter. A single mutex serializes transactions,
// which makes every Atomic call serializable.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	repos := newRepositories(func(f func(st *state) error) error { return f(work) })
	if err := fn(ctx, repos); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Repositories() ports.Repositories {
	return newRepositories(func(f func(st *state) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return f(s.st)
	})
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func newRepositories(run access) ports.Repositories {
	return ports.Repositories{
		Queue:         &queueRepository{run: run},
		Sessions:      &sessionRepository{run: run},
		Matches:       &matchRepository{run: run},
		RoleHistory:   &roleHistoryRepository{run: run},
		Users:         &userStateRepository{run: run},
		Feedback:      &feedbackRepository{run: run},
		Notifications: &notificationRepository{run: run},
	}
}
