package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	apperrors "supermock/pkg/errors"
	"supermock/pkg/utils"
)

const (
	maxTools      = 32
	maxToolLength = 64
)

type profileService struct {
	store  ports.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewProfileService(store ports.Store, logger *zap.SugaredLogger) ports.ProfileService {
	return &profileService{store: store, logger: logger, now: utils.Now}
}

func (s *profileService) Tools(ctx context.Context, userID domain.UserID) ([]string, error) {
	state, err := s.store.Repositories().Users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user state: %w", err)
	}
	return state.Tools, nil
}

// SetTools replaces the user's tools. Entries are trimmed, blanks dropped and
// duplicates collapsed keeping first occurrence order.
func (s *profileService) SetTools(ctx context.Context, userID domain.UserID, tools []string) (domain.UserState, error) {
	cleaned := lo.Uniq(lo.Compact(lo.Map(tools, func(t string, _ int) string {
		return strings.TrimSpace(t)
	})))
	if len(cleaned) > maxTools {
		return domain.UserState{}, apperrors.NewInvalidInputError(fmt.Sprintf("at most %d tools allowed", maxTools))
	}
	if _, ok := lo.Find(cleaned, func(t string) bool { return len([]rune(t)) > maxToolLength }); ok {
		return domain.UserState{}, apperrors.NewInvalidInputError(fmt.Sprintf("tool names are limited to %d characters", maxToolLength))
	}

	var saved domain.UserState
	err := s.store.Atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		state, err := repos.Users.Get(ctx, userID)
		if err != nil {
			return err
		}
		state.Tools = cleaned
		state.UpdatedAt = s.now().UTC()
		saved = state
		return repos.Users.Save(ctx, state)
	})
	if err != nil {
		return domain.UserState{}, fmt.Errorf("save tools: %w", err)
	}

	s.logger.Infow("Profile tools updated", "user_id", userID, "count", len(cleaned))
	return saved, nil
}
