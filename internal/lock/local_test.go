package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalManagerAcquireRelease(t *testing.T) {
	m := NewLocalManager(100 * time.Millisecond)
	ctx := context.Background()

	l, err := m.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	require.NoError(t, l.Extend(ctx))
	require.NoError(t, l.Release(ctx))

	// Double release is an error.
	assert.ErrorIs(t, l.Release(ctx), ErrNoLockHeld)
	assert.ErrorIs(t, l.Extend(ctx), ErrNoLockHeld)
}

func TestLocalManagerContention(t *testing.T) {
	m := NewLocalManager(50 * time.Millisecond)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrAcquireTimeout)

	// Independent keys never contend.
	other, err := m.Acquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, first.Release(ctx))

	second, err := m.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestLocalManagerWaitsForRelease(t *testing.T) {
	m := NewLocalManager(time.Second)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		l, err := m.Acquire(ctx, "sweep", time.Minute)
		if err == nil {
			err = l.Release(ctx)
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, first.Release(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestLocalManagerContextCancel(t *testing.T) {
	m := NewLocalManager(10 * time.Second)

	held, err := m.Acquire(context.Background(), "sweep", time.Minute)
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = m.Acquire(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
