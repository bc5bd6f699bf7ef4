// Package lock provides the distributed mutual-exclusion primitive used to
// serialize position mutations and timeout sweeps across service replicas.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotAcquired means the backing quorum denied the lock.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrAcquireTimeout means acquisition did not succeed within the
	// configured acquire timeout.
	ErrAcquireTimeout = errors.New("lock acquire timed out")
	// ErrNoLockHeld means Release or Extend was called without holding the
	// lock; this is a programming error, not a transient condition.
	ErrNoLockHeld = errors.New("no lock held")
)

// Lock is a held lock instance.
type Lock interface {
	// Release frees the lock. Calling it twice returns ErrNoLockHeld.
	Release(ctx context.Context) error
	// Extend renews the lock for another TTL period.
	Extend(ctx context.Context) error
}

// Manager hands out locks keyed by an arbitrary string (typically a
// participantCurrencyId or a sweeper name).
type Manager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
