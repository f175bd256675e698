package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/retry"
	"supermock/pkg/tracing"
	"supermock/pkg/utils"
)

type matchingService struct {
	store    ports.Store
	events   ports.EventPublisher
	profiles ports.ProfileProvider
	metrics  ports.Metrics
	logger   *zap.SugaredLogger
	retry    retry.Config
	now      func() time.Time
}

func NewMatchingService(
	store ports.Store,
	events ports.EventPublisher,
	profiles ports.ProfileProvider,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
) ports.MatchingService {
	return &matchingService{
		store:    store,
		events:   events,
		profiles: profiles,
		metrics:  orNop(metrics),
		logger:   logger,
		// A conflicting transaction is retried exactly once.
		retry: retry.Once(20*time.Millisecond, domain.ErrTxConflict),
		now:   utils.Now,
	}
}

func (s *matchingService) AttemptMatch(ctx context.Context, key domain.QueueKey) (*domain.Session, error) {
	ctx, span := tracing.TraceMatch(ctx, key.SlotUTC, key.Profession, key.Language)
	defer span.End()
	start := time.Now()

	var session *domain.Session
	err := retry.Retry(ctx, s.retry, func() error {
		session = nil
		return s.store.Atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
			created, err := s.matchInTx(ctx, repos, key)
			session = created
			return err
		})
	})
	if err != nil {
		reason := "error"
		if errors.Is(err, domain.ErrTxConflict) {
			reason = "conflict"
		}
		s.metrics.MatchAborted(reason)
		tracing.RecordError(ctx, err)
		s.logger.Errorw("Matching transaction abandoned",
			"slot_utc", key.SlotUTC,
			"profession", key.Profession,
			"language", key.Language,
			"error", err,
		)
		return nil, fmt.Errorf("attempt match: %w", err)
	}

	tracing.AddSpanAttributes(ctx, tracing.MatchedKey.Bool(session != nil))
	tracing.MeasureDuration(ctx, start)
	if session == nil {
		return nil, nil
	}

	s.metrics.MatchCreated(time.Since(start))
	s.logger.Infow("Match created",
		"session_id", session.ID,
		"interviewer_id", session.InterviewerUserID,
		"candidate_id", session.CandidateUserID,
		"slot_utc", session.SlotUTC,
	)
	s.notifyMatch(ctx, session)
	return session, nil
}

// matchInTx pairs the first compatible candidate with the first compatible
// interviewer, both in FIFO order. It returns nil when no pair exists.
func (s *matchingService) matchInTx(ctx context.Context, repos ports.Repositories, key domain.QueueKey) (*domain.Session, error) {
	filter := domain.WaitingFilter{SlotUTC: key.SlotUTC, Profession: key.Profession, Language: key.Language}

	candidates, err := repos.Queue.ListWaiting(ctx, domain.WaitingFilter{Role: domain.RoleCandidate, SlotUTC: key.SlotUTC})
	if err != nil {
		return nil, err
	}
	interviewers, err := repos.Queue.ListWaiting(ctx, domain.WaitingFilter{Role: domain.RoleInterviewer, SlotUTC: key.SlotUTC})
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if !filter.Accepts(c) {
			continue
		}
		for _, i := range interviewers {
			if i.UserID == c.UserID || !filter.Accepts(i) || !domain.Compatible(c, i) {
				continue
			}
			return s.pair(ctx, repos, key, c, i)
		}
	}
	return nil, nil
}

func (s *matchingService) pair(ctx context.Context, repos ports.Repositories, key domain.QueueKey, candidate, interviewer domain.QueueEntry) (*domain.Session, error) {
	now := s.now().UTC()

	if err := repos.Queue.MarkMatched(ctx, candidate.ID, interviewer.ID); err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:                domain.SessionID(utils.NewID()),
		InterviewerUserID: interviewer.UserID,
		CandidateUserID:   candidate.UserID,
		Observers:         []domain.UserID{},
		Profession:        domain.Resolve(key.Profession, candidate.Profession, interviewer.Profession),
		Language:          domain.Resolve(key.Language, candidate.Language, interviewer.Language),
		SlotUTC:           key.SlotUTC,
		Status:            domain.SessionScheduled,
		RoomID:            utils.GenerateRoomID(),
		VideoLinkStatus:   domain.VideoLinkPending,
		CreatorID:         domain.SystemUserID,
		StartTime:         key.SlotUTC,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repos.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	match := &domain.Match{
		ID:            utils.NewID(),
		CandidateID:   candidate.UserID,
		InterviewerID: interviewer.UserID,
		SlotUTC:       key.SlotUTC,
		SessionID:     session.ID,
		Status:        domain.MatchStatusCreated,
		CreatedAt:     now,
	}
	if err := repos.Matches.Create(ctx, match); err != nil {
		return nil, err
	}

	for _, a := range []domain.RoleAssignment{
		{UserID: interviewer.UserID, SessionID: session.ID, Role: domain.RoleInterviewer, CreatedAt: now},
		{UserID: candidate.UserID, SessionID: session.ID, Role: domain.RoleCandidate, CreatedAt: now},
	} {
		a := a
		if err := repos.RoleHistory.Append(ctx, &a); err != nil {
			return nil, err
		}
	}

	return session, nil
}

func (s *matchingService) notifyMatch(ctx context.Context, session *domain.Session) {
	for _, role := range []domain.Role{domain.RoleInterviewer, domain.RoleCandidate} {
		userID := session.Holder(role)

		tools, err := s.profiles.Tools(ctx, userID)
		if err != nil {
			s.logger.Warnw("Failed to load tools for match notification",
				"user_id", userID,
				"error", err,
			)
			tools = []string{}
		}

		event, err := domain.NewEvent(domain.EventMatchFound, session.ID, domain.MatchFoundPayload{
			SessionID:  session.ID,
			RoomID:     session.RoomID,
			SlotUTC:    session.SlotUTC,
			Role:       role,
			Profession: session.Profession,
			Language:   session.Language,
			Tools:      tools,
		}, session.CreatedAt)
		if err != nil {
			s.logger.Errorw("Failed to encode match notification", "error", err)
			continue
		}
		s.events.NotifyUser(ctx, userID, event)
	}
}

// Drain matches every waiting key until none yields a pair.
func (s *matchingService) Drain(ctx context.Context) (int, error) {
	keys, err := s.store.Repositories().Queue.WaitingKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list waiting keys: %w", err)
	}

	matched := 0
	for _, key := range keys {
		for {
			if err := ctx.Err(); err != nil {
				return matched, err
			}
			session, err := s.AttemptMatch(ctx, key)
			if err != nil {
				s.logger.Warnw("Drain skipped key after failure",
					"slot_utc", key.SlotUTC,
					"profession", key.Profession,
					"language", key.Language,
					"error", err,
				)
				break
			}
			if session == nil {
				break
			}
			matched++
		}
	}
	return matched, nil
}
