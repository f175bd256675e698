package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/utils"
)

type DispatcherConfig struct {
	// NotificationTTL bounds how long a persisted notification stays active.
	// Zero keeps notifications until read.
	NotificationTTL time.Duration
	// Workers delivers asynchronously when positive; zero delivers inline.
	Workers   int
	QueueSize int
}

type delivery struct {
	userID    domain.UserID
	sessionID domain.SessionID
	event     domain.Event
}

// Dispatcher persists user-directed events as notifications and hands them
// to the hub. Delivery failures are logged and dropped.
type Dispatcher struct {
	store    ports.Store
	notifier ports.Notifier
	rooms    ports.RoomBroadcaster
	metrics  ports.Metrics
	logger   *zap.SugaredLogger
	cfg      DispatcherConfig
	now      func() time.Time

	mu     sync.RWMutex
	queue  chan delivery
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(
	store ports.Store,
	notifier ports.Notifier,
	rooms ports.RoomBroadcaster,
	metrics ports.Metrics,
	cfg DispatcherConfig,
	logger *zap.SugaredLogger,
) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	d := &Dispatcher{
		store:    store,
		notifier: notifier,
		rooms:    rooms,
		metrics:  orNop(metrics),
		logger:   logger,
		cfg:      cfg,
		now:      utils.Now,
	}
	if cfg.Workers > 0 {
		d.queue = make(chan delivery, cfg.QueueSize)
		for i := 0; i < cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	}
	return d
}

func (d *Dispatcher) NotifyUser(ctx context.Context, userID domain.UserID, event domain.Event) {
	if userID == "" || userID == domain.SystemUserID {
		return
	}

	now := d.now().UTC()
	n := &domain.Notification{
		ID:        utils.NewID(),
		UserID:    userID,
		Type:      event.Type,
		Payload:   event.Payload,
		Status:    domain.NotificationActive,
		CreatedAt: now,
	}
	if d.cfg.NotificationTTL > 0 {
		expires := now.Add(d.cfg.NotificationTTL)
		n.ExpiresAt = &expires
	}
	if err := d.store.Repositories().Notifications.Create(ctx, n); err != nil {
		d.logger.Warnw("Failed to persist notification",
			"user_id", userID,
			"type", event.Type,
			"error", err,
		)
	}

	d.enqueue(delivery{userID: userID, event: event})
}

func (d *Dispatcher) NotifyRoom(ctx context.Context, sessionID domain.SessionID, event domain.Event) {
	d.enqueue(delivery{sessionID: sessionID, event: event})
}

func (d *Dispatcher) enqueue(job delivery) {
	d.mu.RLock()
	if d.queue == nil || d.closed {
		d.mu.RUnlock()
		d.deliver(context.Background(), job)
		return
	}
	defer d.mu.RUnlock()

	select {
	case d.queue <- job:
	default:
		d.metrics.EventDispatched(job.event.Type, false)
		d.logger.Warnw("Dispatch queue full, event dropped",
			"type", job.event.Type,
			"user_id", job.userID,
			"session_id", job.sessionID,
		)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.deliver(context.Background(), job)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job delivery) {
	var err error
	if job.userID != "" {
		err = d.notifier.Deliver(ctx, job.userID, job.event)
	} else {
		err = d.rooms.Broadcast(ctx, job.sessionID, job.event)
	}

	d.metrics.EventDispatched(job.event.Type, err == nil)
	if err != nil {
		d.logger.Warnw("Event delivery failed",
			"type", job.event.Type,
			"user_id", job.userID,
			"session_id", job.sessionID,
			"error", err,
		)
	}
}

// Stop drains queued deliveries and waits for the workers. Events published
// afterwards are delivered inline.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.queue != nil && !d.closed {
		close(d.queue)
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}
