package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kayode-ade/central-ledger/internal/lock"
	"github.com/kayode-ade/central-ledger/internal/observability"
	"github.com/kayode-ade/central-ledger/internal/service"
)

// TimeoutSweep is the part of the timeout service the worker drives.
type TimeoutSweep interface {
	Sweep(ctx context.Context) (*service.SweepReport, error)
}

// TimeoutSweeper drives the timeout service on an interval. Multiple
// instances may run; the distributed lock inside Sweep makes a pass
// single-flight across the fleet.
type TimeoutSweeper struct {
	timeouts     TimeoutSweep
	pollInterval time.Duration
	logger       *zap.Logger
	stopCh       chan struct{}
}

func NewTimeoutSweeper(timeouts TimeoutSweep, logger *zap.Logger) *TimeoutSweeper {
	return &TimeoutSweeper{
		timeouts:     timeouts,
		pollInterval: 15 * time.Second,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// WithPollInterval sets the sweep interval.
func (w *TimeoutSweeper) WithPollInterval(interval time.Duration) *TimeoutSweeper {
	w.pollInterval = interval
	return w
}

// Start runs the sweep loop until Stop is called or the context is canceled.
func (w *TimeoutSweeper) Start(ctx context.Context) {
	w.logger.Info("timeout sweeper starting", zap.Duration("interval", w.pollInterval))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("timeout sweeper stopping: context canceled")
			return
		case <-w.stopCh:
			w.logger.Info("timeout sweeper stopping: stop signal")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *TimeoutSweeper) Stop() {
	close(w.stopCh)
}

func (w *TimeoutSweeper) sweep(ctx context.Context) {
	_, err := w.timeouts.Sweep(ctx)
	switch {
	case err == nil:
		observability.IncrementWorkerRun("timeout_sweeper", "ok")
	case errors.Is(err, lock.ErrNotAcquired), errors.Is(err, lock.ErrAcquireTimeout):
		// Another instance holds the lock.
		observability.IncrementWorkerRun("timeout_sweeper", "skipped")
	default:
		observability.IncrementWorkerRun("timeout_sweeper", "error")
		w.logger.Error("timeout sweep failed", zap.Error(err))
	}
}

// SweepOnce runs a single sweep immediately. Useful for testing or manual
// triggering.
func (w *TimeoutSweeper) SweepOnce(ctx context.Context) error {
	_, err := w.timeouts.Sweep(ctx)
	return err
}

// Run starts the worker and returns a function that can be called to stop it.
// This is useful for starting the worker in a goroutine.
func (w *TimeoutSweeper) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// String returns a string representation of the worker.
func (w *TimeoutSweeper) String() string {
	return fmt.Sprintf("TimeoutSweeper(interval=%v)", w.pollInterval)
}
