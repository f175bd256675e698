package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	apperrors "supermock/pkg/errors"
	"supermock/pkg/retry"
	"supermock/pkg/utils"
	"supermock/pkg/validation"
)

type queueService struct {
	store    ports.Store
	matching ports.MatchingService
	metrics  ports.Metrics
	logger   *zap.SugaredLogger
	retry    retry.Config
	now      func() time.Time
}

func NewQueueService(
	store ports.Store,
	matching ports.MatchingService,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
) ports.QueueService {
	return &queueService{
		store:    store,
		matching: matching,
		metrics:  orNop(metrics),
		logger:   logger,
		retry:    retry.Once(20*time.Millisecond, domain.ErrTxConflict),
		now:      utils.Now,
	}
}

// Join enqueues the user for a slot, or returns the entry already waiting
// for the same user, role and slot, then tries to match right away.
func (s *queueService) Join(ctx context.Context, req ports.JoinRequest) (*domain.JoinResult, error) {
	req.SlotUTC = utils.NormalizeSlot(req.SlotUTC)
	req.Profession = normalizeKey(req.Profession)
	req.Language = normalizeKey(req.Language)
	if err := validation.Struct(req); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	entry, created, err := s.enqueue(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("join queue: %w", err)
	}

	s.logger.Infow("Queue joined",
		"user_id", req.UserID,
		"role", req.Role,
		"slot_utc", req.SlotUTC,
		"created", created,
	)

	result := &domain.JoinResult{Entry: entry}

	session := s.fastMatch(ctx, entry)
	if session != nil {
		result.Entry.Status = domain.QueueMatched
		result.Session = session
		s.metrics.QueueJoined(req.Role, "matched")
		return result, nil
	}

	result.Queued = true
	if result.Position, err = s.position(ctx, entry); err != nil {
		return nil, fmt.Errorf("queue position: %w", err)
	}
	suggested, err := s.suggestSlot(ctx, entry)
	if err != nil {
		s.logger.Warnw("Failed to compute slot suggestion", "user_id", entry.UserID, "error", err)
	}
	result.Unavailable = &domain.MatchUnavailable{SuggestedSlot: suggested}

	outcome := "queued"
	if !created {
		outcome = "existing"
	}
	s.metrics.QueueJoined(req.Role, outcome)
	return result, nil
}

func (s *queueService) enqueue(ctx context.Context, req ports.JoinRequest) (domain.QueueEntry, bool, error) {
	var (
		entry   domain.QueueEntry
		created bool
	)
	err := retry.Retry(ctx, s.retry, func() error {
		created = false
		return s.store.Atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
			existing, err := repos.Queue.FindWaiting(ctx, req.UserID, req.Role, req.SlotUTC)
			if err == nil {
				entry = *existing
				return nil
			}
			if !errors.Is(err, domain.ErrEntryNotFound) {
				return err
			}

			e := domain.QueueEntry{
				ID:         utils.NewID(),
				UserID:     req.UserID,
				Role:       req.Role,
				Profession: req.Profession,
				Language:   req.Language,
				SlotUTC:    req.SlotUTC,
				Status:     domain.QueueWaiting,
				CreatedAt:  s.now().UTC(),
			}
			if err := repos.Queue.Insert(ctx, &e); err != nil {
				return err
			}
			entry = e
			created = true
			return nil
		})
	})

	// A concurrent identical join won the insert.
	if errors.Is(err, domain.ErrDuplicateEntry) {
		existing, ferr := s.store.Repositories().Queue.FindWaiting(ctx, req.UserID, req.Role, req.SlotUTC)
		if ferr != nil {
			return domain.QueueEntry{}, false, ferr
		}
		return *existing, false, nil
	}
	return entry, created, err
}

// fastMatch runs matching for the entry's bucket until the entry is paired
// or no pair is left. Each round consumes two entries, so it terminates.
func (s *queueService) fastMatch(ctx context.Context, entry domain.QueueEntry) *domain.Session {
	key := domain.QueueKey{SlotUTC: entry.SlotUTC, Profession: entry.Profession, Language: entry.Language}
	for {
		session, err := s.matching.AttemptMatch(ctx, key)
		if err != nil {
			s.logger.Warnw("Fast-path matching failed, entry stays queued",
				"entry_id", entry.ID,
				"error", err,
			)
			return nil
		}
		if session == nil {
			return nil
		}
		if session.Holder(entry.Role) == entry.UserID {
			return session
		}
	}
}

func (s *queueService) position(ctx context.Context, entry domain.QueueEntry) (int, error) {
	waiting, err := s.store.Repositories().Queue.ListWaiting(ctx, domain.WaitingFilter{Role: entry.Role, SlotUTC: entry.SlotUTC})
	if err != nil {
		return 0, err
	}
	filter := domain.WaitingFilter{Profession: entry.Profession, Language: entry.Language}
	peers := lo.Filter(waiting, func(e domain.QueueEntry, _ int) bool { return filter.Accepts(e) })

	_, index, found := lo.FindIndexOf(peers, func(e domain.QueueEntry) bool { return e.ID == entry.ID })
	if !found {
		return 0, domain.ErrEntryNotFound
	}
	return index + 1, nil
}

// suggestSlot returns the nearest upcoming slot where another user waits in
// the opposite role with compatible profession and language.
func (s *queueService) suggestSlot(ctx context.Context, entry domain.QueueEntry) (*time.Time, error) {
	counterparts, err := s.store.Repositories().Queue.ListWaiting(ctx, domain.WaitingFilter{Role: entry.Role.Counterpart()})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	candidates := lo.Filter(counterparts, func(e domain.QueueEntry, _ int) bool {
		return e.UserID != entry.UserID && !e.SlotUTC.Before(now) && domain.Compatible(entry, e)
	})
	if len(candidates) == 0 {
		return nil, nil
	}

	nearest := lo.MinBy(candidates, func(a, b domain.QueueEntry) bool { return a.SlotUTC.Before(b.SlotUTC) }).SlotUTC
	return &nearest, nil
}

func (s *queueService) ListWaiting(ctx context.Context, filter domain.WaitingFilter) ([]domain.QueueEntry, error) {
	filter.Profession = normalizeKey(filter.Profession)
	filter.Language = normalizeKey(filter.Language)
	if !filter.SlotUTC.IsZero() {
		filter.SlotUTC = utils.NormalizeSlot(filter.SlotUTC)
	}

	waiting, err := s.store.Repositories().Queue.ListWaiting(ctx, domain.WaitingFilter{Role: filter.Role, SlotUTC: filter.SlotUTC})
	if err != nil {
		return nil, fmt.Errorf("list waiting: %w", err)
	}
	return lo.Filter(waiting, func(e domain.QueueEntry, _ int) bool { return filter.Accepts(e) }), nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
