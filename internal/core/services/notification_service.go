package services

import (
	"context"
	"fmt"
	"time"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/utils"
)

type notificationService struct {
	store ports.Store
	now   func() time.Time
}

func NewNotificationService(store ports.Store) ports.NotificationService {
	return &notificationService{store: store, now: utils.Now}
}

func (s *notificationService) List(ctx context.Context, userID domain.UserID) ([]domain.Notification, error) {
	list, err := s.store.Repositories().Notifications.ListActive(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID domain.UserID, id string) error {
	return s.store.Repositories().Notifications.MarkRead(ctx, userID, id)
}
