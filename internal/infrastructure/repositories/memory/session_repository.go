package memory

import (
	"context"
	"fmt"
	"sort"

	"supermock/internal/core/domain"
)

type sessionRepository struct {
	run access
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	return r.run(func(st *state) error {
		if _, exists := st.sessions[session.ID]; exists {
			return fmt.Errorf("session already exists: %s", session.ID)
		}
		st.sessions[session.ID] = session.Clone()
		return nil
	})
}

func (r *sessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var found *domain.Session
	err := r.run(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return domain.ErrSessionNotFound
		}
		s = s.Clone()
		found = &s
		return nil
	})
	return found, err
}

func (r *sessionRepository) Update(ctx context.Context, session *domain.Session) error {
	return r.run(func(st *state) error {
		if _, ok := st.sessions[session.ID]; !ok {
			return domain.ErrSessionNotFound
		}
		st.sessions[session.ID] = session.Clone()
		return nil
	})
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Session, error) {
	var sessions []*domain.Session
	err := r.run(func(st *state) error {
		for _, s := range st.sessions {
			s := s
			if s.CanRead(userID) {
				s = s.Clone()
				sessions = append(sessions, &s)
			}
		}
		return nil
	})

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, err
}

type matchRepository struct {
	run access
}

func (r *matchRepository) Create(ctx context.Context, match *domain.Match) error {
	return r.run(func(st *state) error {
		if _, exists := st.matches[match.ID]; exists {
			return fmt.Errorf("match already exists: %s", match.ID)
		}
		for _, m := range st.matches {
			if m.SessionID == match.SessionID {
				return fmt.Errorf("match already recorded for session %s", match.SessionID)
			}
		}
		st.matches[match.ID] = *match
		return nil
	})
}

func (r *matchRepository) GetBySession(ctx context.Context, sessionID domain.SessionID) (*domain.Match, error) {
	var found *domain.Match
	err := r.run(func(st *state) error {
		for _, m := range st.matches {
			if m.SessionID == sessionID {
				m := m
				found = &m
				return nil
			}
		}
		return domain.ErrSessionNotFound
	})
	return found, err
}

type roleHistoryRepository struct {
	run access
}

func (r *roleHistoryRepository) Append(ctx context.Context, assignment *domain.RoleAssignment) error {
	return r.run(func(st *state) error {
		assignment.Seq = st.nextSeq()
		st.roles = append(st.roles, *assignment)
		return nil
	})
}

func (r *roleHistoryRepository) LastDecided(ctx context.Context, userID domain.UserID, exclude domain.SessionID) (*domain.RoleAssignment, error) {
	var found *domain.RoleAssignment
	err := r.run(func(st *state) error {
		for i := len(st.roles) - 1; i >= 0; i-- {
			a := st.roles[i]
			if a.UserID == userID && a.SessionID != exclude && a.Role.Decided() {
				found = &a
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *roleHistoryRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.RoleAssignment, error) {
	var history []domain.RoleAssignment
	err := r.run(func(st *state) error {
		for _, a := range st.roles {
			if a.UserID == userID {
				history = append(history, a)
			}
		}
		return nil
	})
	return history, err
}
