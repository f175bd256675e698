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
	"supermock/pkg/cache"
	apperrors "supermock/pkg/errors"
	"supermock/pkg/retry"
	"supermock/pkg/tracing"
	"supermock/pkg/utils"
	"supermock/pkg/validation"
)

type SessionServiceConfig struct {
	// VideoDurationMinutes is the room length requested from the provider.
	VideoDurationMinutes int
}

// SessionService owns session roles, status, video links and feedback.
// It also decides who may join a session room.
type SessionService struct {
	store     ports.Store
	rooms     ports.RoomProvider
	links     ports.LinkValidator
	events    ports.EventPublisher
	metrics   ports.Metrics
	roomState *cache.Cache[domain.RoomState]
	logger    *zap.SugaredLogger
	cfg       SessionServiceConfig
	retry     retry.Config
	now       func() time.Time
}

// NewSessionService builds the registry. roomState caches provider status
// checks and is owned by the caller.
func NewSessionService(
	store ports.Store,
	rooms ports.RoomProvider,
	links ports.LinkValidator,
	events ports.EventPublisher,
	metrics ports.Metrics,
	roomState *cache.Cache[domain.RoomState],
	cfg SessionServiceConfig,
	logger *zap.SugaredLogger,
) *SessionService {
	if cfg.VideoDurationMinutes <= 0 {
		cfg.VideoDurationMinutes = 60
	}
	return &SessionService{
		store:     store,
		rooms:     rooms,
		links:     links,
		events:    events,
		metrics:   orNop(metrics),
		roomState: roomState,
		logger:    logger,
		cfg:       cfg,
		retry:     retry.Once(20*time.Millisecond, domain.ErrTxConflict),
		now:       utils.Now,
	}
}

func (s *SessionService) atomic(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	return retry.Retry(ctx, s.retry, func() error {
		return s.store.Atomic(ctx, fn)
	})
}

func (s *SessionService) CreateSession(ctx context.Context, req ports.CreateSessionRequest) (*domain.Session, error) {
	req.SlotUTC = utils.NormalizeSlot(req.SlotUTC)
	req.Profession = normalizeKey(req.Profession)
	req.Language = normalizeKey(req.Language)
	if err := validation.Struct(req); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	ctx, span := tracing.TraceSessionOperation(ctx, "create", "", string(req.CreatorID))
	defer span.End()

	var session *domain.Session
	err := s.atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		now := s.now().UTC()
		session = &domain.Session{
			ID:              domain.SessionID(utils.NewID()),
			Observers:       []domain.UserID{},
			Profession:      req.Profession,
			Language:        req.Language,
			SlotUTC:         req.SlotUTC,
			Status:          domain.SessionPending,
			RoomID:          utils.GenerateRoomID(),
			VideoLinkStatus: domain.VideoLinkPending,
			CreatorID:       req.CreatorID,
			StartTime:       req.SlotUTC,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := repos.Sessions.Create(ctx, session); err != nil {
			return err
		}
		if req.Role == "" {
			return nil
		}
		if _, err := s.assignInTx(ctx, repos, session, req.CreatorID, req.Role, now); err != nil {
			return err
		}
		return repos.Sessions.Update(ctx, session)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Infow("Session created",
		"session_id", session.ID,
		"creator_id", session.CreatorID,
		"role", req.Role,
	)
	if req.Role != "" {
		return s.afterAssign(ctx, session, req.CreatorID, req.Role), nil
	}
	return session, nil
}

// GetSession returns the session to anyone who can read it. An interviewer
// read also checks the provisioned room and re-provisions an expired one.
func (s *SessionService) GetSession(ctx context.Context, sessionID domain.SessionID, requesterID domain.UserID) (*domain.Session, error) {
	session, err := s.store.Repositories().Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.CanRead(requesterID) {
		return nil, domain.ErrNotParticipant
	}

	if session.InterviewerUserID != requesterID ||
		session.VideoLinkStatus != domain.VideoLinkActive ||
		session.VideoLink == "" ||
		session.Status.Terminal() {
		return session, nil
	}

	link := session.VideoLink
	state, err := s.roomState.GetOrSet(ctx, link, func(ctx context.Context) (domain.RoomState, error) {
		return s.rooms.RoomStatus(ctx, link)
	})
	if err != nil {
		s.logger.Warnw("Room status check failed",
			"session_id", sessionID,
			"error", err,
		)
		return session, nil
	}
	if state != domain.RoomExpired {
		return session, nil
	}

	s.roomState.Delete(link)
	if err := s.expireLink(ctx, sessionID, link); err != nil {
		return nil, fmt.Errorf("expire video link: %w", err)
	}
	s.metrics.VideoLinkResult(domain.VideoLinkExpired)
	s.logger.Infow("Video link expired, re-provisioning", "session_id", sessionID)

	refreshed, _, err := s.provision(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.emitLinkUpdated(ctx, refreshed)
	return refreshed, nil
}

func (s *SessionService) expireLink(ctx context.Context, sessionID domain.SessionID, link string) error {
	return s.atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		current, err := repos.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if current.VideoLink != link || current.VideoLinkStatus != domain.VideoLinkActive {
			return nil
		}
		current.VideoLinkStatus = domain.VideoLinkExpired
		current.UpdatedAt = s.now().UTC()
		return repos.Sessions.Update(ctx, current)
	})
}

func (s *SessionService) ListSessions(ctx context.Context, userID domain.UserID) ([]*domain.Session, error) {
	sessions, err := s.store.Repositories().Sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionService) AssignRole(ctx context.Context, sessionID domain.SessionID, userID domain.UserID, role domain.Role) (*domain.Session, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	ctx, span := tracing.TraceSessionOperation(ctx, "assign_role", string(sessionID), string(userID))
	defer span.End()

	var (
		session *domain.Session
		changed bool
	)
	err := s.atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		current, err := repos.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		changed, err = s.assignInTx(ctx, repos, current, userID, role, s.now().UTC())
		if err != nil {
			return err
		}
		session = current
		if !changed {
			return nil
		}
		return repos.Sessions.Update(ctx, current)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if !changed {
		return session, nil
	}

	s.logger.Infow("Role assigned",
		"session_id", sessionID,
		"user_id", userID,
		"role", role,
	)
	return s.afterAssign(ctx, session, userID, role), nil
}

// assignInTx applies the role rules to session and records the assignment.
// It reports false when the user already holds role.
func (s *SessionService) assignInTx(ctx context.Context, repos ports.Repositories, session *domain.Session, userID domain.UserID, role domain.Role, now time.Time) (bool, error) {
	if session.Status.Terminal() {
		return false, domain.ErrInvalidTransition
	}

	current, has := session.RoleOf(userID)
	if has && current == role {
		return false, nil
	}
	if has && current.Decided() {
		return false, domain.ErrRoleConflict
	}
	if holder := session.Holder(role); holder != "" {
		return false, domain.ErrRoleConflict
	}

	if role == domain.RoleInterviewer {
		last, err := repos.RoleHistory.LastDecided(ctx, userID, session.ID)
		if err != nil {
			return false, err
		}
		if last != nil && last.Role == domain.RoleInterviewer {
			return false, domain.ErrRoleRestricted
		}
	}

	if role.Decided() {
		state, err := repos.Users.Get(ctx, userID)
		if err != nil {
			return false, err
		}
		if state.FeedbackStatus == domain.FeedbackPending && state.PendingSessionID != session.ID {
			return false, domain.ErrFeedbackRequired
		}

		switch role {
		case domain.RoleInterviewer:
			session.InterviewerUserID = userID
		case domain.RoleCandidate:
			session.CandidateUserID = userID
		}
		session.Observers = lo.Without(session.Observers, userID)

		state.MarkPending(session.ID, now)
		if err := repos.Users.Save(ctx, state); err != nil {
			return false, err
		}
	} else {
		session.Observers = append(session.Observers, userID)
	}
	session.UpdatedAt = now

	if err := repos.RoleHistory.Append(ctx, &domain.RoleAssignment{
		UserID:    userID,
		SessionID: session.ID,
		Role:      role,
		CreatedAt: now,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// afterAssign runs the post-commit effects of a role change. Provisioning
// failures are logged and leave the link pending.
func (s *SessionService) afterAssign(ctx context.Context, session *domain.Session, userID domain.UserID, role domain.Role) *domain.Session {
	s.emitRoom(ctx, session.ID, domain.EventRoleSelected, domain.RoleSelectedPayload{
		SessionID: session.ID,
		UserID:    userID,
		Role:      role,
	})

	if role != domain.RoleInterviewer || !session.NeedsVideoLink() {
		return session
	}
	refreshed, changed, err := s.provision(ctx, session.ID)
	if err != nil {
		s.logger.Warnw("Video link provisioning after role assignment failed",
			"session_id", session.ID,
			"error", err,
		)
		return session
	}
	if changed {
		s.emitLinkUpdated(ctx, refreshed)
	}
	return refreshed
}

func (s *SessionService) UpdateStatus(ctx context.Context, sessionID domain.SessionID, requesterID domain.UserID, status domain.SessionStatus) (*domain.Session, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidTransition
	}

	ctx, span := tracing.TraceSessionOperation(ctx, "update_status", string(sessionID), string(requesterID))
	defer span.End()

	var (
		session *domain.Session
		owing   []domain.UserID
	)
	err := s.atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		owing = nil
		current, err := repos.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if current.InterviewerUserID == "" || current.InterviewerUserID != requesterID {
			return domain.ErrNotInterviewer
		}
		if !domain.CanTransition(current.Status, status) {
			return domain.ErrInvalidTransition
		}

		now := s.now().UTC()
		current.Status = status
		current.UpdatedAt = now
		if status == domain.SessionCompleted {
			current.CompletedAt = &now
			// Participants who already left feedback are not gated again.
			submitted, err := repos.Feedback.ListBySession(ctx, current.ID)
			if err != nil {
				return err
			}
			authors := lo.Map(submitted, func(fb domain.Feedback, _ int) domain.UserID { return fb.FromUserID })
			owing = lo.Without(decidedParticipants(current), authors...)
			for _, userID := range owing {
				state, err := repos.Users.Get(ctx, userID)
				if err != nil {
					return err
				}
				state.MarkPending(current.ID, now)
				if err := repos.Users.Save(ctx, state); err != nil {
					return err
				}
			}
		}
		session = current
		return repos.Sessions.Update(ctx, current)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	s.metrics.SessionStatusChanged(status)
	s.logger.Infow("Session status changed",
		"session_id", sessionID,
		"status", status,
	)

	if status == domain.SessionCompleted {
		for _, userID := range owing {
			s.emitUser(ctx, userID, domain.EventFeedbackRequired, session.ID, domain.SessionPayload{SessionID: session.ID})
		}
		s.emitRoom(ctx, session.ID, domain.EventSessionCompleted, domain.SessionPayload{SessionID: session.ID})
	}
	return session, nil
}

// SetVideoLink stores a manual link after validation, or provisions one.
// A provisioned link that fails validation leaves the session pending.
func (s *SessionService) SetVideoLink(ctx context.Context, sessionID domain.SessionID, requesterID domain.UserID, manualLink string) (*domain.Session, error) {
	ctx, span := tracing.TraceSessionOperation(ctx, "set_video_link", string(sessionID), string(requesterID))
	defer span.End()

	session, err := s.store.Repositories().Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.InterviewerUserID == "" || session.InterviewerUserID != requesterID {
		return nil, domain.ErrNotInterviewer
	}
	if session.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}

	manualLink = strings.TrimSpace(manualLink)
	if manualLink == "" {
		if session.NeedsVideoLink() {
			if session, _, err = s.provision(ctx, sessionID); err != nil {
				return nil, err
			}
		}
		s.emitLinkUpdated(ctx, session)
		return session, nil
	}

	if check := s.links.Check(manualLink); !check.Valid {
		s.metrics.VideoLinkResult(domain.VideoLinkPending)
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidLink, check.Reason)
	}

	err = s.atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		current, err := repos.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if current.InterviewerUserID != requesterID {
			return domain.ErrNotInterviewer
		}
		if current.Status.Terminal() {
			return domain.ErrInvalidTransition
		}
		current.VideoLink = manualLink
		current.VideoLinkStatus = domain.VideoLinkManual
		current.UpdatedAt = s.now().UTC()
		session = current
		return repos.Sessions.Update(ctx, current)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	s.metrics.VideoLinkResult(domain.VideoLinkManual)
	s.logger.Infow("Manual video link set", "session_id", sessionID)
	s.emitLinkUpdated(ctx, session)
	return session, nil
}

// provision asks the room provider for a link and stores it once validated.
// Provider or validation failures are not errors: the session keeps its
// current link status and changed is false.
func (s *SessionService) provision(ctx context.Context, sessionID domain.SessionID) (*domain.Session, bool, error) {
	session, err := s.store.Repositories().Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	link, ok := s.obtainLink(ctx, session)
	if !ok {
		s.metrics.VideoLinkResult(domain.VideoLinkPending)
		return session, false, nil
	}

	changed := false
	err = s.atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		current, err := repos.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		session = current
		changed = false
		if current.Status.Terminal() || !current.NeedsVideoLink() {
			return nil
		}
		current.VideoLink = link
		current.VideoLinkStatus = domain.VideoLinkActive
		current.UpdatedAt = s.now().UTC()
		changed = true
		return repos.Sessions.Update(ctx, current)
	})
	if err != nil {
		return nil, false, fmt.Errorf("store video link: %w", err)
	}

	if changed {
		s.metrics.VideoLinkResult(domain.VideoLinkActive)
		s.logger.Infow("Video link provisioned", "session_id", sessionID)
	}
	return session, changed, nil
}

func (s *SessionService) obtainLink(ctx context.Context, session *domain.Session) (string, bool) {
	summary := strings.TrimSpace(fmt.Sprintf("SuperMock interview %s %s", session.Profession, session.Language))

	link, err := s.rooms.CreateRoom(ctx, summary, session.StartTime, s.cfg.VideoDurationMinutes)
	if err != nil {
		s.logger.Warnw("Room provisioning failed",
			"session_id", session.ID,
			"error", err,
		)
		return "", false
	}

	check, err := s.rooms.ValidateRoomURL(ctx, link)
	if err != nil {
		s.logger.Warnw("Room link validation failed",
			"session_id", session.ID,
			"error", err,
		)
		return "", false
	}
	if !check.Valid {
		s.logger.Warnw("Provisioned room link rejected",
			"session_id", session.ID,
			"reason", check.Reason,
		)
		return "", false
	}
	return link, true
}

func (s *SessionService) SubmitFeedback(ctx context.Context, req ports.FeedbackRequest) (*domain.Feedback, error) {
	req.Comments = strings.TrimSpace(req.Comments)
	if err := validation.Struct(req); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	ctx, span := tracing.TraceSessionOperation(ctx, "submit_feedback", string(req.SessionID), string(req.FromUserID))
	defer span.End()

	var (
		feedback *domain.Feedback
		session  *domain.Session
		both     bool
	)
	err := s.atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		both = false
		current, err := repos.Sessions.GetByID(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if current.Status == domain.SessionCancelled {
			return domain.ErrInvalidTransition
		}
		role, ok := current.RoleOf(req.FromUserID)
		if !ok {
			return domain.ErrNotParticipant
		}

		now := s.now().UTC()
		fb := &domain.Feedback{
			ID:         utils.NewID(),
			SessionID:  current.ID,
			FromUserID: req.FromUserID,
			Ratings:    req.Ratings,
			Comments:   req.Comments,
			CreatedAt:  now,
		}
		if role.Decided() {
			fb.ToUserID = current.Holder(role.Counterpart())
		}
		if err := repos.Feedback.Create(ctx, fb); err != nil {
			return err
		}

		if role.Decided() {
			state, err := repos.Users.Get(ctx, req.FromUserID)
			if err != nil {
				return err
			}
			if state.ClearPending(current.ID, now) {
				if err := repos.Users.Save(ctx, state); err != nil {
					return err
				}
			}

			all, err := repos.Feedback.ListBySession(ctx, current.ID)
			if err != nil {
				return err
			}
			both = decidedFeedbackCount(current, all) == 2
		}

		feedback = fb
		session = current
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	s.metrics.FeedbackSubmitted()
	s.logger.Infow("Feedback submitted",
		"session_id", req.SessionID,
		"from_user_id", req.FromUserID,
		"both_sides", both,
	)

	if both {
		for _, userID := range decidedParticipants(session) {
			s.emitUser(ctx, userID, domain.EventBothSidesSubmitted, session.ID, domain.SessionPayload{SessionID: session.ID})
		}
	}
	return feedback, nil
}

// CanJoin reports whether userID holds a role in the session.
func (s *SessionService) CanJoin(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (bool, error) {
	session, err := s.store.Repositories().Sessions.GetByID(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.IsParticipant(userID), nil
}

func (s *SessionService) emitLinkUpdated(ctx context.Context, session *domain.Session) {
	s.emitRoom(ctx, session.ID, domain.EventVideoLinkUpdated, domain.VideoLinkUpdatedPayload{
		SessionID:       session.ID,
		VideoLink:       session.VideoLink,
		VideoLinkStatus: session.VideoLinkStatus,
	})
}

func (s *SessionService) emitRoom(ctx context.Context, sessionID domain.SessionID, t domain.EventType, payload interface{}) {
	event, err := domain.NewEvent(t, sessionID, payload, s.now().UTC())
	if err != nil {
		s.logger.Errorw("Failed to encode event", "type", t, "error", err)
		return
	}
	s.events.NotifyRoom(ctx, sessionID, event)
}

func (s *SessionService) emitUser(ctx context.Context, userID domain.UserID, t domain.EventType, sessionID domain.SessionID, payload interface{}) {
	event, err := domain.NewEvent(t, sessionID, payload, s.now().UTC())
	if err != nil {
		s.logger.Errorw("Failed to encode event", "type", t, "error", err)
		return
	}
	s.events.NotifyUser(ctx, userID, event)
}

func decidedParticipants(session *domain.Session) []domain.UserID {
	return lo.Compact([]domain.UserID{session.InterviewerUserID, session.CandidateUserID})
}

func decidedFeedbackCount(session *domain.Session, feedback []domain.Feedback) int {
	return lo.CountBy(feedback, func(fb domain.Feedback) bool {
		role, ok := session.RoleOf(fb.FromUserID)
		return ok && role.Decided()
	})
}
