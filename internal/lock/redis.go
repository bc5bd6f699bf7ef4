package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// RedisManager implements Manager on a Redlock-style quorum via redsync.
// A single-node Redis still works; a multi-node pool tolerates minority
// node failure.
type RedisManager struct {
	rs             *redsync.Redsync
	acquireTimeout time.Duration
	keyPrefix      string
}

// NewRedisManager builds a manager over the given clients. acquireTimeout
// bounds how long Acquire may retry before failing fast.
func NewRedisManager(acquireTimeout time.Duration, clients ...redis.UniversalClient) *RedisManager {
	pools := make([]redsyncredis.Pool, 0, len(clients))
	for _, c := range clients {
		pools = append(pools, goredis.NewPool(c))
	}
	return &RedisManager{
		rs:             redsync.New(pools...),
		acquireTimeout: acquireTimeout,
		keyPrefix:      "central-ledger:lock:",
	}
}

func (m *RedisManager) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	retryDelay := 50 * time.Millisecond
	tries := int(m.acquireTimeout/retryDelay) + 1

	mutex := m.rs.NewMutex(m.keyPrefix+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(retryDelay),
	)

	acquireCtx, cancel := context.WithTimeout(ctx, m.acquireTimeout)
	defer cancel()

	if err := mutex.LockContext(acquireCtx); err != nil {
		if errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrAcquireTimeout
		}
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, ErrNotAcquired
		}
		return nil, err
	}
	return &redisLock{mutex: mutex}, nil
}

type redisLock struct {
	mu       sync.Mutex
	mutex    *redsync.Mutex
	released bool
}

func (l *redisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrNoLockHeld
	}
	l.released = true
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoLockHeld
	}
	return nil
}

func (l *redisLock) Extend(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrNoLockHeld
	}
	ok, err := l.mutex.ExtendContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoLockHeld
	}
	return nil
}
