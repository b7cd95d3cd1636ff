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
	"go.uber.org/zap"
)

// ErrNotHeld is returned by Unlock when the key expired or changed owner.
var ErrNotHeld = errors.New("lock not held")

const releaseTimeout = 5 * time.Second

// Only the holder may delete or extend the key.
var (
	unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// Lock is a single-holder lease on a Redis key. The lease is renewed at
// half its TTL until Unlock.
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration

	stopOnce  sync.Once
	stopRenew chan struct{}
}

func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client:    client,
		key:       key,
		value:     lockValue(),
		ttl:       ttl,
		stopRenew: make(chan struct{}),
	}
}

func lockValue() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// TryLock attempts to take the lease without waiting.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to try lock %s: %w", l.key, err)
	}
	if acquired {
		go l.renew(context.WithoutCancel(ctx))
	}
	return acquired, nil
}

// Unlock releases the lease. It returns ErrNotHeld when the lease was lost.
func (l *Lock) Unlock(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopRenew) })

	deleted, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.key, err)
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

func (l *Lock) renew(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ok, err := renewScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
			if err != nil || ok == 0 {
				return
			}
		case <-l.stopRenew:
			return
		}
	}
}

// Held reports whether any holder has the key.
func (l *Lock) Held(ctx context.Context) (bool, error) {
	n, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LockManager hands out leases under a common key prefix.
type LockManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewLockManager(client *redis.Client, prefix string, ttl time.Duration, logger *zap.SugaredLogger) *LockManager {
	return &LockManager{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// TryAcquire takes the lease for key. ok is false when someone else holds it.
func (m *LockManager) TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error) {
	lock := NewLock(m.client, m.prefix+key, m.ttl)
	ok, err = lock.TryLock(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := lock.Unlock(ctx); err != nil {
			m.logger.Warnw("Failed to release lock", "key", lock.key, "error", err)
		}
	}, true, nil
}

// LocalLocker is the single-process counterpart of LockManager.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
