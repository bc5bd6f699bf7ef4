package lock

import (
	"context"
	"sync"
	"time"
)

// LocalManager is an in-process Manager for tests and single-replica
// deployments. Same contract as the Redis implementation, no quorum.
type LocalManager struct {
	mu             sync.Mutex
	held           map[string]chan struct{}
	acquireTimeout time.Duration
}

func NewLocalManager(acquireTimeout time.Duration) *LocalManager {
	return &LocalManager{
		held:           make(map[string]chan struct{}),
		acquireTimeout: acquireTimeout,
	}
}

func (m *LocalManager) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	deadline := time.NewTimer(m.acquireTimeout)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		waiter, taken := m.held[key]
		if !taken {
			released := make(chan struct{})
			m.held[key] = released
			m.mu.Unlock()
			return &localLock{manager: m, key: key, released: released}, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrAcquireTimeout
		case <-waiter:
			// Holder released; retry.
		}
	}
}

type localLock struct {
	mu       sync.Mutex
	manager  *LocalManager
	key      string
	released chan struct{}
	done     bool
}

func (l *localLock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return ErrNoLockHeld
	}
	l.done = true

	l.manager.mu.Lock()
	delete(l.manager.held, l.key)
	l.manager.mu.Unlock()
	close(l.released)
	return nil
}

func (l *localLock) Extend(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return ErrNoLockHeld
	}
	return nil
}
