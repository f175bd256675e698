package distributed

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is the single-instance counterpart of LockManager. Locks expire
// after their ttl so a crashed holder cannot block forever.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

// TryAcquire mirrors LockManager.TryAcquire.
func (l *LocalLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, nil
	}
	until := now.Add(ttl)
	l.held[key] = until

	var once sync.Once
	return func(context.Context) error {
		err := ErrNotHeld
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == until {
				delete(l.held, key)
				err = nil
			}
		})
		return err
	}, nil
}
