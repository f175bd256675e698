package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	apperrors "supermock/pkg/errors"
)

func TestJoin_Idempotent(t *testing.T) {
	f := newFixture(t)

	first := f.join(t, "candidate-1", domain.RoleCandidate, testSlot, "Frontend ", "RU")
	second := f.join(t, "candidate-1", domain.RoleCandidate, testSlot, "frontend", "ru")

	assert.True(t, first.Queued)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, "frontend", second.Entry.Profession)
	assert.Equal(t, "ru", second.Entry.Language)

	waiting, err := f.queue.ListWaiting(context.Background(), domain.WaitingFilter{})
	require.NoError(t, err)
	assert.Len(t, waiting, 1)
}

func TestJoin_ConcurrentIdenticalJoins(t *testing.T) {
	f := newFixture(t)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{})
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.queue.Join(context.Background(), ports.JoinRequest{
				UserID:  "candidate-1",
				Role:    domain.RoleCandidate,
				SlotUTC: testSlot,
			})
			if assert.NoError(t, err) {
				mu.Lock()
				ids[res.Entry.ID] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
}

func TestJoin_Position(t *testing.T) {
	f := newFixture(t)

	f.join(t, "candidate-1", domain.RoleCandidate, testSlot, "", "")
	f.join(t, "candidate-2", domain.RoleCandidate, testSlot, "backend", "")
	res := f.join(t, "candidate-3", domain.RoleCandidate, testSlot, "frontend", "")

	// candidate-2 asked for backend, so it is not ahead of a frontend request.
	assert.Equal(t, 2, res.Position)

	other := f.join(t, "candidate-4", domain.RoleCandidate, testSlot.Add(time.Hour), "", "")
	assert.Equal(t, 1, other.Position)
}

func TestJoin_FastPathMatch(t *testing.T) {
	f := newFixture(t)

	waiting := f.join(t, "interviewer-1", domain.RoleInterviewer, testSlot, "", "")
	require.True(t, waiting.Queued)

	res := f.join(t, "candidate-1", domain.RoleCandidate, testSlot, "frontend", "ru")
	assert.False(t, res.Queued)
	require.NotNil(t, res.Session)
	assert.Equal(t, domain.QueueMatched, res.Entry.Status)
	assert.Equal(t, domain.UserID("candidate-1"), res.Session.CandidateUserID)
	assert.Equal(t, "frontend", res.Session.Profession)
	assert.Len(t, f.events.ofType(domain.EventMatchFound), 2)
}

func TestJoin_UnavailableSuggestsNearestSlot(t *testing.T) {
	f := newFixture(t)
	f.queue.now = func() time.Time { return testSlot.Add(-24 * time.Hour) }

	later := testSlot.Add(3 * time.Hour)
	sooner := testSlot.Add(time.Hour)
	f.join(t, "interviewer-1", domain.RoleInterviewer, later, "go", "")
	f.join(t, "interviewer-2", domain.RoleInterviewer, sooner, "go", "")
	f.join(t, "interviewer-3", domain.RoleInterviewer, testSlot.Add(30*time.Minute), "java", "")

	res := f.join(t, "candidate-1", domain.RoleCandidate, testSlot, "go", "")
	assert.True(t, res.Queued)
	require.NotNil(t, res.Unavailable)
	require.NotNil(t, res.Unavailable.SuggestedSlot)
	assert.True(t, res.Unavailable.SuggestedSlot.Equal(sooner))
}

func TestJoin_NoSuggestionWithoutCounterpart(t *testing.T) {
	f := newFixture(t)

	res := f.join(t, "candidate-1", domain.RoleCandidate, testSlot, "", "")
	require.NotNil(t, res.Unavailable)
	assert.Nil(t, res.Unavailable.SuggestedSlot)
}

func TestJoin_NormalizesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offset := time.FixedZone("UTC+3", 3*60*60)

	first, err := f.queue.Join(ctx, ports.JoinRequest{
		UserID: "candidate-1", Role: domain.RoleCandidate, SlotUTC: testSlot.In(offset).Add(42 * time.Second),
	})
	require.NoError(t, err)
	assert.True(t, first.Entry.SlotUTC.Equal(testSlot))
	assert.Equal(t, time.UTC, first.Entry.SlotUTC.Location())

	again, err := f.queue.Join(ctx, ports.JoinRequest{
		UserID: "candidate-1", Role: domain.RoleCandidate, SlotUTC: testSlot.Add(59 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, first.Entry.ID, again.Entry.ID, "same minute is the same slot")
}

func TestJoin_InvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  ports.JoinRequest
	}{
		{"missing user", ports.JoinRequest{Role: domain.RoleCandidate, SlotUTC: testSlot}},
		{"observer role", ports.JoinRequest{UserID: "u", Role: domain.RoleObserver, SlotUTC: testSlot}},
		{"zero slot", ports.JoinRequest{UserID: "u", Role: domain.RoleCandidate}},
		{"bad profession", ports.JoinRequest{UserID: "u", Role: domain.RoleCandidate, SlotUTC: testSlot, Profession: "front end!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.queue.Join(context.Background(), tt.req)
			require.Error(t, err)
			appErr := apperrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, appErr.Code)
		})
	}
}

func TestJoin_SlotNormalizedToUTC(t *testing.T) {
	f := newFixture(t)
	moscow := time.FixedZone("MSK", 3*60*60)

	res := f.join(t, "candidate-1", domain.RoleCandidate, testSlot.In(moscow), "", "")
	assert.Equal(t, time.UTC, res.Entry.SlotUTC.Location())
	assert.True(t, res.Entry.SlotUTC.Equal(testSlot))
}
