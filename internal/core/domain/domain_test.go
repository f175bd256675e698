package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to SessionStatus
		want     bool
	}{
		{SessionPending, SessionScheduled, true},
		{SessionPending, SessionActive, true},
		{SessionScheduled, SessionActive, true},
		{SessionActive, SessionCompleted, true},
		{SessionScheduled, SessionCancelled, true},
		{SessionActive, SessionExpired, true},
		{SessionScheduled, SessionCompleted, false},
		{SessionCompleted, SessionCancelled, false},
		{SessionCancelled, SessionActive, false},
		{SessionActive, SessionActive, false},
		{SessionScheduled, SessionPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, SessionCompleted.Terminal())
	assert.False(t, SessionActive.Terminal())
}

func TestCompatibleAndFilter(t *testing.T) {
	slot := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	frontendRU := QueueEntry{Role: RoleCandidate, Profession: "frontend", Language: "ru", SlotUTC: slot}
	anything := QueueEntry{Role: RoleInterviewer, SlotUTC: slot}
	backend := QueueEntry{Role: RoleInterviewer, Profession: "backend", SlotUTC: slot}

	assert.True(t, Compatible(frontendRU, anything))
	assert.False(t, Compatible(frontendRU, backend))

	f := WaitingFilter{SlotUTC: slot, Profession: "frontend"}
	assert.True(t, f.Accepts(frontendRU))
	assert.True(t, f.Accepts(anything))
	assert.False(t, f.Accepts(backend))
	assert.False(t, WaitingFilter{SlotUTC: slot.Add(time.Minute)}.Accepts(frontendRU))
	assert.False(t, WaitingFilter{Role: RoleInterviewer}.Accepts(frontendRU))

	assert.Equal(t, "frontend", Resolve("", "frontend", "backend"))
	assert.Equal(t, "", Resolve("", ""))
}

func TestEntryBefore(t *testing.T) {
	at := time.Now()
	a := QueueEntry{CreatedAt: at, Seq: 1}
	b := QueueEntry{CreatedAt: at, Seq: 2}
	c := QueueEntry{CreatedAt: at.Add(-time.Second), Seq: 3}

	assert.True(t, EntryBefore(a, b))
	assert.False(t, EntryBefore(b, a))
	assert.True(t, EntryBefore(c, a))
}

func TestSessionRoles(t *testing.T) {
	s := Session{InterviewerUserID: "i", CandidateUserID: "c", Observers: []UserID{"o"}, CreatorID: "creator"}

	role, ok := s.RoleOf("i")
	assert.True(t, ok)
	assert.Equal(t, RoleInterviewer, role)
	role, _ = s.RoleOf("o")
	assert.Equal(t, RoleObserver, role)
	_, ok = s.RoleOf("")
	assert.False(t, ok)

	assert.False(t, s.IsParticipant("creator"))
	assert.True(t, s.CanRead("creator"))
	assert.Equal(t, []UserID{"i", "c", "o"}, s.Members())

	clone := s.Clone()
	clone.Observers[0] = "x"
	assert.Equal(t, UserID("o"), s.Observers[0])
}

func TestSessionNeedsVideoLink(t *testing.T) {
	assert.True(t, (&Session{VideoLinkStatus: VideoLinkPending}).NeedsVideoLink())
	assert.True(t, (&Session{VideoLinkStatus: VideoLinkExpired, VideoLink: "https://x"}).NeedsVideoLink())
	assert.False(t, (&Session{VideoLinkStatus: VideoLinkActive, VideoLink: "https://x"}).NeedsVideoLink())
	assert.False(t, (&Session{VideoLinkStatus: VideoLinkManual, VideoLink: "https://x"}).NeedsVideoLink())
}

func TestUserStatePending(t *testing.T) {
	now := time.Now()
	u := NewUserState("u1")
	u.MarkPending("s1", now)

	assert.False(t, u.ClearPending("s2", now), "other session must not clear the gate")
	assert.Equal(t, FeedbackPending, u.FeedbackStatus)
	assert.True(t, u.ClearPending("s1", now))
	assert.Equal(t, FeedbackNone, u.FeedbackStatus)
	assert.Empty(t, u.PendingSessionID)
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, RoleObserver.Valid())
	assert.False(t, Role("host").Valid())
	assert.True(t, RoleCandidate.Decided())
	assert.False(t, RoleObserver.Decided())
	assert.Equal(t, RoleCandidate, RoleInterviewer.Counterpart())
}
