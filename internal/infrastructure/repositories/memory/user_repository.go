package memory

import (
	"context"
	"sort"

	"supermock/internal/core/domain"
)

type userStateRepository struct {
	run access
}

func (r *userStateRepository) Get(ctx context.Context, userID domain.UserID) (domain.UserState, error) {
	result := domain.NewUserState(userID)
	err := r.run(func(st *state) error {
		if u, ok := st.users[userID]; ok {
			result = u.Clone()
		}
		return nil
	})
	return result, err
}

func (r *userStateRepository) Save(ctx context.Context, us domain.UserState) error {
	return r.run(func(st *state) error {
		st.users[us.UserID] = us.Clone()
		return nil
	})
}

type feedbackRepository struct {
	run access
}

func feedbackKey(sessionID domain.SessionID, from domain.UserID) string {
	return string(sessionID) + "|" + string(from)
}

func (r *feedbackRepository) Create(ctx context.Context, fb *domain.Feedback) error {
	return r.run(func(st *state) error {
		key := feedbackKey(fb.SessionID, fb.FromUserID)
		if _, exists := st.feedback[key]; exists {
			return domain.ErrDuplicateFeedback
		}
		st.feedback[key] = fb.Clone()
		return nil
	})
}

func (r *feedbackRepository) ListBySession(ctx context.Context, sessionID domain.SessionID) ([]domain.Feedback, error) {
	var list []domain.Feedback
	err := r.run(func(st *state) error {
		for _, fb := range st.feedback {
			if fb.SessionID == sessionID {
				list = append(list, fb.Clone())
			}
		}
		return nil
	})

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, err
}
