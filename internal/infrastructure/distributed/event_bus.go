package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"supermock/internal/core/ports"
)

var ErrAlreadySubscribed = errors.New("event bus already subscribed")

// EventBus carries hub envelopes between instances over Redis pub/sub.
type EventBus struct {
	client     redis.UniversalClient
	instanceID string
	channel    string
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewEventBus(client redis.UniversalClient, channel, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		logger:     logger,
	}
}

func (eb *EventBus) InstanceID() string {
	return eb.instanceID
}

// Publish stamps env with this instance's id and publishes it.
func (eb *EventBus) Publish(ctx context.Context, env ports.Envelope) error {
	env.Origin = eb.instanceID

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}

	eb.logger.Debugw("published envelope",
		"session_id", env.SessionID,
		"user_id", env.UserID,
	)
	return nil
}

// Subscribe delivers envelopes from other instances until ctx is done.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(ports.Envelope)) error {
	eb.mu.Lock()
	if eb.pubsub != nil {
		eb.mu.Unlock()
		return ErrAlreadySubscribed
	}
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	eb.pubsub = pubsub
	eb.mu.Unlock()

	defer func() {
		eb.mu.Lock()
		eb.pubsub = nil
		eb.mu.Unlock()
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, remote, err := decodeEnvelope([]byte(msg.Payload), eb.instanceID)
			if err != nil {
				eb.logger.Warnw("failed to unmarshal envelope",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}
			if remote {
				handler(env)
			}
		}
	}
}

// Close stops an active subscription.
func (eb *EventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}

// decodeEnvelope parses payload and reports whether it came from another
// instance.
func decodeEnvelope(payload []byte, self string) (ports.Envelope, bool, error) {
	var env ports.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return ports.Envelope{}, false, err
	}
	return env, env.Origin != self, nil
}
