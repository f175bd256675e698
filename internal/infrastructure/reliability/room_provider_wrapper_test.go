package reliability

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermock/internal/core/domain"
	"supermock/pkg/circuitbreaker"
	"supermock/pkg/logger"
	"supermock/pkg/retry"
)

type flakyProvider struct {
	failures int32
	calls    int32
	delay    time.Duration
}

func (p *flakyProvider) CreateRoom(ctx context.Context, summary string, start time.Time, durationMinutes int) (string, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if n <= atomic.LoadInt32(&p.failures) {
		return "", errors.New("upstream unavailable")
	}
	return "https://meet.jit.si/room", nil
}

func (p *flakyProvider) ValidateRoomURL(ctx context.Context, url string) (domain.LinkCheck, error) {
	atomic.AddInt32(&p.calls, 1)
	return domain.LinkCheck{Valid: true}, nil
}

func (p *flakyProvider) RoomStatus(ctx context.Context, url string) (domain.RoomState, error) {
	atomic.AddInt32(&p.calls, 1)
	return domain.RoomActive, nil
}

func fastRetry(attempts int) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestWrapperRetriesTransientFailure(t *testing.T) {
	p := &flakyProvider{failures: 1}
	w := NewRoomProviderWrapper(p, time.Second, fastRetry(2), circuitbreaker.DefaultConfig(), logger.NewNop())

	link, err := w.CreateRoom(context.Background(), "s", time.Now(), 30)
	require.NoError(t, err)
	assert.Equal(t, "https://meet.jit.si/room", link)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
}

func TestWrapperOpensBreaker(t *testing.T) {
	p := &flakyProvider{failures: 100}
	cb := circuitbreaker.DefaultConfig()
	cb.Name = "video"
	cb.FailureThreshold = 2
	cb.Timeout = time.Hour
	w := NewRoomProviderWrapper(p, time.Second, fastRetry(1), cb, logger.NewNop())

	for i := 0; i < 2; i++ {
		_, err := w.CreateRoom(context.Background(), "s", time.Now(), 30)
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, w.State())
	assert.ErrorContains(t, w.HealthCheck(context.Background()), "circuit open")

	_, err := w.CreateRoom(context.Background(), "s", time.Now(), 30)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls), "open breaker must not reach the provider")
}

func TestWrapperOpenBreakerIsNotRetried(t *testing.T) {
	p := &flakyProvider{failures: 100}
	cb := circuitbreaker.DefaultConfig()
	cb.FailureThreshold = 1
	cb.Timeout = time.Hour
	w := NewRoomProviderWrapper(p, time.Second, fastRetry(5), cb, logger.NewNop())

	_, err := w.CreateRoom(context.Background(), "s", time.Now(), 30)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestWrapperTimeout(t *testing.T) {
	p := &flakyProvider{delay: time.Second}
	w := NewRoomProviderWrapper(p, 20*time.Millisecond, fastRetry(1), circuitbreaker.DefaultConfig(), logger.NewNop())

	start := time.Now()
	_, err := w.CreateRoom(context.Background(), "s", time.Now(), 30)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWrapperPassThrough(t *testing.T) {
	p := &flakyProvider{}
	w := NewRoomProviderWrapper(p, time.Second, retry.Config{}, circuitbreaker.DefaultConfig(), logger.NewNop())

	check, err := w.ValidateRoomURL(context.Background(), "https://meet.jit.si/x")
	require.NoError(t, err)
	assert.True(t, check.Valid)

	state, err := w.RoomStatus(context.Background(), "https://meet.jit.si/x")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomActive, state)
}
