package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the key expired or was taken over.
var ErrNotHeld = errors.New("lock was not held by this instance")

var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// DistributedLock is a single-use Redis lock (SET NX PX) renewed at half its TTL
// while held.
type DistributedLock struct {
	client   redis.Cmdable
	key      string
	value    string
	ttl      time.Duration
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDistributedLock creates a new distributed lock
func NewDistributedLock(client redis.Cmdable, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    key,
		value:  generateLockValue(),
		ttl:    ttl,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func generateLockValue() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// TryLock attempts to acquire the lock without blocking
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to try lock %s: %w", l.key, err)
	}
	if !acquired {
		return false, nil
	}

	go l.renew()
	return true, nil
}

// Unlock releases the lock and stops renewal.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stop) })

	result, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.key, err)
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}

func (l *DistributedLock) renew() {
	defer close(l.done)

	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
			renewed, err := renewScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || renewed == 0 {
				return
			}
		case <-l.stop:
			return
		}
	}
}

// LockManager hands out prefixed locks.
type LockManager struct {
	client redis.Cmdable
	prefix string
}

// NewLockManager creates a new lock manager
func NewLockManager(client redis.Cmdable, prefix string) *LockManager {
	return &LockManager{
		client: client,
		prefix: prefix,
	}
}

// NewLock returns an unacquired lock for prefix+key.
func (lm *LockManager) NewLock(key string, ttl time.Duration) *DistributedLock {
	return NewDistributedLock(lm.client, lm.prefix+key, ttl)
}

// TryAcquire acquires key without blocking. The returned release func is nil
// when the lock is held elsewhere.
func (lm *LockManager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock := lm.NewLock(key, ttl)
	ok, err := lock.TryLock(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return lock.Unlock, nil
}
