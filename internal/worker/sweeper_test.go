package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/kayode-ade/central-ledger/internal/lock"
	"github.com/kayode-ade/central-ledger/internal/service"
)

type stubSweep struct {
	calls atomic.Int64
	err   error
}

func (s *stubSweep) Sweep(context.Context) (*service.SweepReport, error) {
	s.calls.Inc()
	if s.err != nil {
		return nil, s.err
	}
	return &service.SweepReport{}, nil
}

func TestSweeperRunsOnInterval(t *testing.T) {
	stub := &stubSweep{}
	w := NewTimeoutSweeper(stub, zap.NewNop()).WithPollInterval(10 * time.Millisecond)

	stop := w.Run(context.Background())
	time.Sleep(55 * time.Millisecond)
	stop()

	calls := stub.calls.Load()
	assert.GreaterOrEqual(t, calls, int64(2), "expected repeated sweeps, got %d", calls)

	// No sweeps after stop.
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, stub.calls.Load(), calls+1)
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	stub := &stubSweep{}
	w := NewTimeoutSweeper(stub, zap.NewNop()).WithPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}

func TestSweeperToleratesLockContention(t *testing.T) {
	stub := &stubSweep{err: lock.ErrNotAcquired}
	w := NewTimeoutSweeper(stub, zap.NewNop()).WithPollInterval(10 * time.Millisecond)

	stop := w.Run(context.Background())
	time.Sleep(35 * time.Millisecond)
	stop()

	assert.GreaterOrEqual(t, stub.calls.Load(), int64(1), "contended sweeps must keep polling")
}

func TestSweepOnce(t *testing.T) {
	stub := &stubSweep{}
	w := NewTimeoutSweeper(stub, zap.NewNop())

	require.NoError(t, w.SweepOnce(context.Background()))
	assert.Equal(t, int64(1), stub.calls.Load())

	boom := errors.New("boom")
	stub.err = boom
	assert.ErrorIs(t, w.SweepOnce(context.Background()), boom)
}
