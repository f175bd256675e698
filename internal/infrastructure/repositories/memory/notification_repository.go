package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"supermock/internal/core/domain"
)

type notificationRepository struct {
	run access
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.run(func(st *state) error {
		if _, exists := st.notifications[n.ID]; exists {
			return fmt.Errorf("notification already exists: %s", n.ID)
		}
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r *notificationRepository) ListActive(ctx context.Context, userID domain.UserID, now time.Time) ([]domain.Notification, error) {
	var list []domain.Notification
	err := r.run(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID && n.Status == domain.NotificationActive && !n.Expired(now) {
				list = append(list, n)
			}
		}
		return nil
	})

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID domain.UserID, id string) error {
	return r.run(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return domain.ErrNotificationNotFound
		}
		n.Status = domain.NotificationRead
		st.notifications[id] = n
		return nil
	})
}

func (r *notificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	err := r.run(func(st *state) error {
		for id, n := range st.notifications {
			if n.Expired(now) {
				delete(st.notifications, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}
