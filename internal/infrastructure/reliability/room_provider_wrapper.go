package reliability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/circuitbreaker"
	"supermock/pkg/retry"
)

// RoomProviderWrapper wraps a RoomProvider with a per-call timeout, retry
// logic and a circuit breaker.
type RoomProviderWrapper struct {
	provider ports.RoomProvider
	logger   *zap.SugaredLogger

	timeout        time.Duration
	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewRoomProviderWrapper creates a new wrapper with retry and circuit breaker
func NewRoomProviderWrapper(
	provider ports.RoomProvider,
	timeout time.Duration,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *RoomProviderWrapper {
	// An open breaker or a cancelled caller is never retried.
	nonRetryable := append([]error{circuitbreaker.ErrOpen, context.Canceled}, retryConfig.NonRetryableErrors...)
	retryConfig.NonRetryableErrors = nonRetryable

	wrapper := &RoomProviderWrapper{
		provider:       provider,
		logger:         logger,
		timeout:        timeout,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New(cbConfig),
	}

	wrapper.circuitBreaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Infow("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return wrapper
}

// State exposes the breaker state for metrics.
func (w *RoomProviderWrapper) State() circuitbreaker.State {
	return w.circuitBreaker.GetState()
}

// HealthCheck fails while the breaker is open so /ready reports a provider
// outage.
func (w *RoomProviderWrapper) HealthCheck(_ context.Context) error {
	stats := w.circuitBreaker.GetStats()
	if stats.State != circuitbreaker.StateOpen {
		return nil
	}
	return fmt.Errorf("video provider circuit open since %s, last failure %s",
		stats.StateChangeTime.UTC().Format(time.RFC3339), stats.LastFailureTime.UTC().Format(time.RFC3339))
}

func (w *RoomProviderWrapper) CreateRoom(ctx context.Context, summary string, start time.Time, durationMinutes int) (string, error) {
	return guarded(ctx, w, func(ctx context.Context) (string, error) {
		return w.provider.CreateRoom(ctx, summary, start, durationMinutes)
	})
}

func (w *RoomProviderWrapper) ValidateRoomURL(ctx context.Context, url string) (domain.LinkCheck, error) {
	return guarded(ctx, w, func(ctx context.Context) (domain.LinkCheck, error) {
		return w.provider.ValidateRoomURL(ctx, url)
	})
}

func (w *RoomProviderWrapper) RoomStatus(ctx context.Context, url string) (domain.RoomState, error) {
	return guarded(ctx, w, func(ctx context.Context) (domain.RoomState, error) {
		return w.provider.RoomStatus(ctx, url)
	})
}

func guarded[T any](ctx context.Context, w *RoomProviderWrapper, fn func(ctx context.Context) (T, error)) (T, error) {
	call := func() (T, error) {
		return circuitbreaker.ExecuteWithResult(ctx, w.circuitBreaker, func() (T, error) {
			callCtx, cancel := context.WithTimeout(ctx, w.timeout)
			defer cancel()
			return fn(callCtx)
		})
	}

	if !w.retryConfig.Enabled {
		return call()
	}
	return retry.RetryWithResult(ctx, w.retryConfig, call)
}
