package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/internal/infrastructure/repositories/memory"
	"supermock/pkg/cache"
)

var testSlot = time.Date(2030, 3, 14, 9, 0, 0, 0, time.UTC)

type MockRoomProvider struct {
	mock.Mock
}

func (m *MockRoomProvider) CreateRoom(ctx context.Context, summary string, start time.Time, durationMinutes int) (string, error) {
	args := m.Called(ctx, summary, start, durationMinutes)
	return args.String(0), args.Error(1)
}

func (m *MockRoomProvider) ValidateRoomURL(ctx context.Context, url string) (domain.LinkCheck, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(domain.LinkCheck), args.Error(1)
}

func (m *MockRoomProvider) RoomStatus(ctx context.Context, url string) (domain.RoomState, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(domain.RoomState), args.Error(1)
}

type MockLinkValidator struct {
	mock.Mock
}

func (m *MockLinkValidator) Check(url string) domain.LinkCheck {
	return m.Called(url).Get(0).(domain.LinkCheck)
}

type sentEvent struct {
	UserID    domain.UserID
	SessionID domain.SessionID
	Event     domain.Event
}

// recordingPublisher captures every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []sentEvent
}

func (p *recordingPublisher) NotifyUser(_ context.Context, userID domain.UserID, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{UserID: userID, Event: event})
}

func (p *recordingPublisher) NotifyRoom(_ context.Context, sessionID domain.SessionID, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{SessionID: sessionID, Event: event})
}

func (p *recordingPublisher) ofType(t domain.EventType) []sentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []sentEvent
	for _, e := range p.events {
		if e.Event.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type staticProfiles map[domain.UserID][]string

func (p staticProfiles) Tools(_ context.Context, userID domain.UserID) ([]string, error) {
	return p[userID], nil
}

type fixture struct {
	store    *memory.Store
	events   *recordingPublisher
	rooms    *MockRoomProvider
	links    *MockLinkValidator
	matching *matchingService
	queue    *queueService
	sessions *SessionService
	logger   *zap.SugaredLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	store := memory.NewStore()
	events := &recordingPublisher{}
	rooms := &MockRoomProvider{}
	links := &MockLinkValidator{}

	roomState := cache.New[domain.RoomState](time.Minute)
	t.Cleanup(roomState.Stop)

	matching := NewMatchingService(store, events, staticProfiles{"interviewer-1": {"go", "postgres"}}, nil, logger).(*matchingService)
	queue := NewQueueService(store, matching, nil, logger).(*queueService)
	sessions := NewSessionService(store, rooms, links, events, nil, roomState, SessionServiceConfig{}, logger)

	return &fixture{
		store:    store,
		events:   events,
		rooms:    rooms,
		links:    links,
		matching: matching,
		queue:    queue,
		sessions: sessions,
		logger:   logger,
	}
}

func (f *fixture) join(t *testing.T, userID domain.UserID, role domain.Role, slot time.Time, profession, language string) *domain.JoinResult {
	t.Helper()
	res, err := f.queue.Join(context.Background(), ports.JoinRequest{
		UserID:     userID,
		Role:       role,
		SlotUTC:    slot,
		Profession: profession,
		Language:   language,
	})
	require.NoError(t, err)
	return res
}

// insert enqueues without running the fast path.
func (f *fixture) insert(t *testing.T, userID domain.UserID, role domain.Role, slot time.Time, profession, language string) domain.QueueEntry {
	t.Helper()
	entry, _, err := f.queue.enqueue(context.Background(), ports.JoinRequest{
		UserID:     userID,
		Role:       role,
		SlotUTC:    slot,
		Profession: profession,
		Language:   language,
	})
	require.NoError(t, err)
	return entry
}

func (f *fixture) newSession(t *testing.T, creator domain.UserID) *domain.Session {
	t.Helper()
	s, err := f.sessions.CreateSession(context.Background(), ports.CreateSessionRequest{
		CreatorID: creator,
		SlotUTC:   testSlot,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) expectProvisioning(link string, check domain.LinkCheck) {
	f.rooms.On("CreateRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(link, nil)
	f.rooms.On("ValidateRoomURL", mock.Anything, link).Return(check, nil)
}
