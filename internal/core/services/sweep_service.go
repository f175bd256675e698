package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jasonlvhit/gocron"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/retry"
	"supermock/pkg/utils"
)

const sweepLockKey = "supermock:sweep"

type SweepConfig struct {
	Interval time.Duration
	// StaleAfter is the grace period after a slot before its waiting
	// entries expire.
	StaleAfter time.Duration
	LockTTL    time.Duration
}

type SweepResult struct {
	Expired int
	Matched int
	Purged  int
	// Skipped is set when another instance holds the sweep lock.
	Skipped bool
}

// SweepService expires stale queue entries, purges expired notifications
// and drains every waiting bucket through the matcher.
type SweepService struct {
	store    ports.Store
	matching ports.MatchingService
	locker   ports.Locker
	metrics  ports.Metrics
	logger   *zap.SugaredLogger
	cfg      SweepConfig
	retry    retry.Config
	now      func() time.Time

	scheduler *gocron.Scheduler
	stop      chan bool
}

func NewSweepService(
	store ports.Store,
	matching ports.MatchingService,
	locker ports.Locker,
	metrics ports.Metrics,
	cfg SweepConfig,
	logger *zap.SugaredLogger,
) *SweepService {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	return &SweepService{
		store:    store,
		matching: matching,
		locker:   locker,
		metrics:  orNop(metrics),
		logger:   logger,
		cfg:      cfg,
		retry:    retry.Once(20*time.Millisecond, domain.ErrTxConflict),
		now:      utils.Now,
	}
}

// Sweep runs one pass. It is a no-op when the lock is held elsewhere.
func (s *SweepService) Sweep(ctx context.Context) (SweepResult, error) {
	release, err := s.locker.TryAcquire(ctx, sweepLockKey, s.cfg.LockTTL)
	if err != nil {
		return SweepResult{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if release == nil {
		s.logger.Debugw("Sweep skipped, lock held by another instance")
		return SweepResult{Skipped: true}, nil
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.logger.Warnw("Failed to release sweep lock", "error", err)
		}
	}()

	start := time.Now()
	var result SweepResult

	if result.Expired, err = s.expireStale(ctx); err != nil {
		return result, fmt.Errorf("expire stale entries: %w", err)
	}
	if result.Purged, err = s.store.Repositories().Notifications.DeleteExpired(ctx, s.now().UTC()); err != nil {
		return result, fmt.Errorf("purge notifications: %w", err)
	}
	if result.Matched, err = s.matching.Drain(ctx); err != nil {
		return result, fmt.Errorf("drain matching: %w", err)
	}

	elapsed := time.Since(start)
	s.metrics.SweepCompleted(result.Expired, result.Matched, result.Purged, elapsed)
	s.logger.Infow("Sweep completed",
		"expired", result.Expired,
		"matched", result.Matched,
		"purged", result.Purged,
		"duration", elapsed,
	)
	return result, nil
}

func (s *SweepService) expireStale(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.cfg.StaleAfter)

	expired := 0
	err := retry.Retry(ctx, s.retry, func() error {
		expired = 0
		return s.store.Atomic(ctx, func(ctx context.Context, repos ports.Repositories) error {
			stale, err := repos.Queue.ListStale(ctx, cutoff)
			if err != nil || len(stale) == 0 {
				return err
			}
			ids := lo.Map(stale, func(e domain.QueueEntry, _ int) string { return e.ID })
			if err := repos.Queue.MarkExpired(ctx, ids...); err != nil {
				return err
			}
			expired = len(ids)
			return nil
		})
	})
	return expired, err
}

// Start schedules Sweep every Interval until Stop.
func (s *SweepService) Start(ctx context.Context) error {
	seconds := uint64(s.cfg.Interval / time.Second)
	if seconds == 0 {
		seconds = 1
	}

	s.scheduler = gocron.NewScheduler()
	if err := s.scheduler.Every(seconds).Seconds().Do(s.run, ctx); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.stop = s.scheduler.Start()

	s.logger.Infow("Sweep scheduled", "interval", s.cfg.Interval, "stale_after", s.cfg.StaleAfter)
	return nil
}

func (s *SweepService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Errorw("Sweep failed", "error", err)
	}
}

func (s *SweepService) Stop() {
	if s.stop == nil {
		return
	}
	s.stop <- true
	s.scheduler.Clear()
	s.stop = nil
}
