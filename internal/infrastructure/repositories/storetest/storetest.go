// Package storetest holds the behaviour every ports.Store adapter must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/utils"
)

var slot = time.Date(2030, 3, 1, 10, 0, 0, 0, time.UTC)

// Run exercises newStore against the common store contract.
func Run(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("QueueInsertAndDuplicate", func(t *testing.T) { testQueueInsert(t, newStore(t)) })
	t.Run("QueueFIFO", func(t *testing.T) { testQueueFIFO(t, newStore(t)) })
	t.Run("QueueMarkAllOrNothing", func(t *testing.T) { testQueueMark(t, newStore(t)) })
	t.Run("QueueKeysAndStale", func(t *testing.T) { testQueueKeys(t, newStore(t)) })
	t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("RoleHistory", func(t *testing.T) { testRoleHistory(t, newStore(t)) })
	t.Run("UserStateAndFeedback", func(t *testing.T) { testUsersAndFeedback(t, newStore(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
}

func entry(user domain.UserID, role domain.Role, at time.Time) *domain.QueueEntry {
	return &domain.QueueEntry{
		ID:        utils.NewID(),
		UserID:    user,
		Role:      role,
		SlotUTC:   slot,
		Status:    domain.QueueWaiting,
		CreatedAt: at,
	}
}

func testQueueInsert(t *testing.T, store ports.Store) {
	ctx := context.Background()
	repo := store.Repositories().Queue
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := entry("u1", domain.RoleCandidate, now)
	require.NoError(t, repo.Insert(ctx, first))
	assert.NotZero(t, first.Seq)

	err := repo.Insert(ctx, entry("u1", domain.RoleCandidate, now))
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)

	// Same user, other role is a separate entry.
	require.NoError(t, repo.Insert(ctx, entry("u1", domain.RoleInterviewer, now)))

	found, err := repo.FindWaiting(ctx, "u1", domain.RoleCandidate, slot)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.True(t, found.SlotUTC.Equal(slot))

	_, err = repo.FindWaiting(ctx, "u2", domain.RoleCandidate, slot)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	// A matched entry no longer blocks a new waiting one.
	require.NoError(t, repo.MarkMatched(ctx, first.ID))
	require.NoError(t, repo.Insert(ctx, entry("u1", domain.RoleCandidate, now)))
}

func testQueueFIFO(t *testing.T, store ports.Store) {
	ctx := context.Background()
	repo := store.Repositories().Queue
	now := time.Now().UTC().Truncate(time.Millisecond)

	a := entry("a", domain.RoleCandidate, now)
	b := entry("b", domain.RoleCandidate, now)
	c := entry("c", domain.RoleCandidate, now.Add(-time.Minute))
	other := entry("d", domain.RoleInterviewer, now)
	for _, e := range []*domain.QueueEntry{a, b, c, other} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	list, err := repo.ListWaiting(ctx, domain.WaitingFilter{Role: domain.RoleCandidate, SlotUTC: slot})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []domain.UserID{"c", "a", "b"}, []domain.UserID{list[0].UserID, list[1].UserID, list[2].UserID})

	list, err = repo.ListWaiting(ctx, domain.WaitingFilter{Role: domain.RoleCandidate, SlotUTC: slot.Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testQueueMark(t *testing.T, store ports.Store) {
	ctx := context.Background()
	repo := store.Repositories().Queue
	now := time.Now().UTC()

	a := entry("a", domain.RoleCandidate, now)
	b := entry("b", domain.RoleInterviewer, now)
	require.NoError(t, repo.Insert(ctx, a))
	require.NoError(t, repo.Insert(ctx, b))
	require.NoError(t, repo.MarkMatched(ctx, a.ID))

	err := repo.MarkMatched(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// b must still be waiting after the failed batch.
	_, err = repo.FindWaiting(ctx, "b", domain.RoleInterviewer, slot)
	require.NoError(t, err)

	require.NoError(t, repo.MarkExpired(ctx, b.ID))
	_, err = repo.FindWaiting(ctx, "b", domain.RoleInterviewer, slot)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func testQueueKeys(t *testing.T, store ports.Store) {
	ctx := context.Background()
	repo := store.Repositories().Queue
	now := time.Now().UTC()

	early := entry("a", domain.RoleCandidate, now)
	early.SlotUTC = slot.Add(-2 * time.Hour)
	frontend := entry("b", domain.RoleCandidate, now)
	frontend.Profession = "frontend"
	plain := entry("c", domain.RoleInterviewer, now)
	dup := entry("d", domain.RoleInterviewer, now)
	for _, e := range []*domain.QueueEntry{early, frontend, plain, dup} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	keys, err := repo.WaitingKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.True(t, keys[0].SlotUTC.Equal(early.SlotUTC))
	assert.Equal(t, "", keys[1].Profession)
	assert.Equal(t, "frontend", keys[2].Profession)

	stale, err := repo.ListStale(ctx, slot.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, early.ID, stale[0].ID)
}

func testAtomicRollback(t *testing.T, store ports.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	e := entry("a", domain.RoleCandidate, time.Now().UTC())

	err := store.Atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		require.NoError(t, repos.Queue.Insert(ctx, e))
		us := domain.NewUserState("a")
		us.MarkPending("s1", time.Now().UTC())
		require.NoError(t, repos.Users.Save(ctx, us))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Repositories().Queue.FindWaiting(ctx, "a", domain.RoleCandidate, slot)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	us, err := store.Repositories().Users.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.FeedbackNone, us.FeedbackStatus)

	err = store.Atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
		return repos.Queue.Insert(ctx, e)
	})
	require.NoError(t, err)
	_, err = store.Repositories().Queue.FindWaiting(ctx, "a", domain.RoleCandidate, slot)
	assert.NoError(t, err)
}

func newSession(id domain.SessionID, created time.Time) *domain.Session {
	return &domain.Session{
		ID:              id,
		SlotUTC:         slot,
		Status:          domain.SessionScheduled,
		RoomID:          utils.GenerateRoomID(),
		VideoLinkStatus: domain.VideoLinkPending,
		CreatorID:       domain.SystemUserID,
		StartTime:       slot,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func testSessions(t *testing.T, store ports.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	now := time.Now().UTC().Truncate(time.Millisecond)

	older := newSession("s1", now.Add(-time.Hour))
	older.InterviewerUserID = "i"
	older.CandidateUserID = "c"
	newer := newSession("s2", now)
	newer.Observers = []domain.UserID{"c"}
	require.NoError(t, repos.Sessions.Create(ctx, older))
	require.NoError(t, repos.Sessions.Create(ctx, newer))

	got, err := repos.Sessions.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("i"), got.InterviewerUserID)
	assert.True(t, got.CreatedAt.Equal(older.CreatedAt))
	assert.Nil(t, got.CompletedAt)

	_, err = repos.Sessions.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	completed := now.Add(time.Minute)
	got.Status = domain.SessionCompleted
	got.CompletedAt = &completed
	got.VideoLink = "https://meet.jit.si/x"
	require.NoError(t, repos.Sessions.Update(ctx, got))

	again, err := repos.Sessions.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, again.Status)
	require.NotNil(t, again.CompletedAt)
	assert.True(t, again.CompletedAt.Equal(completed))
	assert.Equal(t, "https://meet.jit.si/x", again.VideoLink)

	assert.ErrorIs(t, repos.Sessions.Update(ctx, newSession("missing", now)), domain.ErrSessionNotFound)

	list, err := repos.Sessions.ListByUser(ctx, "c")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.SessionID("s2"), list[0].ID)
	assert.Equal(t, domain.SessionID("s1"), list[1].ID)

	list, err = repos.Sessions.ListByUser(ctx, domain.SystemUserID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = repos.Sessions.ListByUser(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, list)

	m := &domain.Match{ID: utils.NewID(), CandidateID: "c", InterviewerID: "i", SlotUTC: slot, SessionID: "s1", Status: domain.MatchStatusCreated, CreatedAt: now}
	require.NoError(t, repos.Matches.Create(ctx, m))
	gotMatch, err := repos.Matches.GetBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, gotMatch.ID)
	assert.Error(t, repos.Matches.Create(ctx, &domain.Match{ID: utils.NewID(), SessionID: "s1", SlotUTC: slot, CreatedAt: now}))
}

func testRoleHistory(t *testing.T, store ports.Store) {
	ctx := context.Background()
	repo := store.Repositories().RoleHistory
	now := time.Now().UTC()

	last, err := repo.LastDecided(ctx, "u", "")
	require.NoError(t, err)
	assert.Nil(t, last)

	for _, a := range []domain.RoleAssignment{
		{UserID: "u", SessionID: "s1", Role: domain.RoleInterviewer, CreatedAt: now},
		{UserID: "u", SessionID: "s2", Role: domain.RoleObserver, CreatedAt: now},
		{UserID: "u", SessionID: "s3", Role: domain.RoleCandidate, CreatedAt: now},
		{UserID: "other", SessionID: "s4", Role: domain.RoleInterviewer, CreatedAt: now},
	} {
		a := a
		require.NoError(t, repo.Append(ctx, &a))
		assert.NotZero(t, a.Seq)
	}

	last, err = repo.LastDecided(ctx, "u", "")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, domain.RoleCandidate, last.Role)

	last, err = repo.LastDecided(ctx, "u", "s3")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, domain.RoleInterviewer, last.Role)
	assert.Equal(t, domain.SessionID("s1"), last.SessionID)

	history, err := repo.ListByUser(ctx, "u")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.RoleObserver, history[1].Role)
}

func testUsersAndFeedback(t *testing.T, store ports.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	now := time.Now().UTC().Truncate(time.Millisecond)

	us, err := repos.Users.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, domain.NewUserState("u"), us)

	us.MarkPending("s1", now)
	us.Tools = []string{"go", "sql"}
	require.NoError(t, repos.Users.Save(ctx, us))

	got, err := repos.Users.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, domain.FeedbackPending, got.FeedbackStatus)
	assert.Equal(t, domain.SessionID("s1"), got.PendingSessionID)
	assert.Equal(t, []string{"go", "sql"}, got.Tools)

	fb := &domain.Feedback{ID: utils.NewID(), SessionID: "s1", FromUserID: "u", ToUserID: "v", Ratings: map[string]int{"overall": 4}, CreatedAt: now}
	require.NoError(t, repos.Feedback.Create(ctx, fb))
	err = repos.Feedback.Create(ctx, &domain.Feedback{ID: utils.NewID(), SessionID: "s1", FromUserID: "u", Ratings: map[string]int{"overall": 1}, CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrDuplicateFeedback)
	require.NoError(t, repos.Feedback.Create(ctx, &domain.Feedback{ID: utils.NewID(), SessionID: "s1", FromUserID: "v", ToUserID: "u", Ratings: map[string]int{"overall": 5}, CreatedAt: now.Add(time.Second)}))

	list, err := repos.Feedback.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.UserID("u"), list[0].FromUserID)
	assert.Equal(t, 4, list[0].Ratings["overall"])
}

func testNotifications(t *testing.T, store ports.Store) {
	ctx := context.Background()
	repo := store.Repositories().Notifications
	now := time.Now().UTC().Truncate(time.Millisecond)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	fresh := &domain.Notification{ID: "n1", UserID: "u", Type: domain.EventMatchFound, Payload: []byte(`{"a":1}`), Status: domain.NotificationActive, CreatedAt: now, ExpiresAt: &future}
	stale := &domain.Notification{ID: "n2", UserID: "u", Type: domain.EventFeedbackRequired, Payload: []byte(`{}`), Status: domain.NotificationActive, CreatedAt: past, ExpiresAt: &past}
	forever := &domain.Notification{ID: "n3", UserID: "u", Type: domain.EventSessionCompleted, Payload: []byte(`{}`), Status: domain.NotificationActive, CreatedAt: past}
	for _, n := range []*domain.Notification{fresh, stale, forever} {
		require.NoError(t, repo.Create(ctx, n))
	}

	list, err := repo.ListActive(ctx, "u", now)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n1", list[0].ID)
	assert.JSONEq(t, `{"a":1}`, string(list[0].Payload))

	assert.ErrorIs(t, repo.MarkRead(ctx, "someone-else", "n1"), domain.ErrNotificationNotFound)
	require.NoError(t, repo.MarkRead(ctx, "u", "n1"))
	list, err = repo.ListActive(ctx, "u", now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n3", list[0].ID)

	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}
