package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/events"
	"github.com/kayode-ade/central-ledger/internal/lock"
	"github.com/kayode-ade/central-ledger/internal/observability"
	"github.com/kayode-ade/central-ledger/internal/repository"
)

const sweeperLockKey = "timeout-sweeper"

// TimeoutService scans the transfer and fx-transfer timeout work queues,
// garbage-collects rows whose transfer is already handled, and expires
// reservation-holding transfers past their expiration: RESERVED on both
// kinds, plus fx legs parked in RECEIVED_FULFIL_DEPENDENT. A sweep runs only
// while holding the distributed lock: two replicas racing on the same stale
// row would double-release a reservation.
type TimeoutService struct {
	store       QueryStore
	transfers   *TransferService
	fxTransfers *FxTransferService
	locks       lock.Manager
	lockTTL     time.Duration
	publisher   events.Publisher
	logger      *zap.Logger
}

func NewTimeoutService(store QueryStore, transfers *TransferService, fxTransfers *FxTransferService, locks lock.Manager, lockTTL time.Duration, publisher events.Publisher, logger *zap.Logger) *TimeoutService {
	return &TimeoutService{
		store:       store,
		transfers:   transfers,
		fxTransfers: fxTransfers,
		locks:       locks,
		lockTTL:     lockTTL,
		publisher:   publisher,
		logger:      logger,
	}
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Collected int
	Expired   int
	FxExpired int
}

// Sweep runs one full pass. Safe to call on an interval; a replica that
// cannot get the lock skips the pass.
func (s *TimeoutService) Sweep(ctx context.Context) (*SweepReport, error) {
	started := time.Now()
	held, err := s.locks.Acquire(ctx, sweeperLockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire sweeper lock: %w", err)
	}
	defer func() {
		if relErr := held.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn("release sweeper lock failed", zap.Error(relErr))
		}
	}()

	report := &SweepReport{}
	var pending []pendingEvent

	err = s.store.RunInTx(ctx, func(r *repository.Repository) error {
		candidates, err := r.ListTimeoutCandidates(ctx)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, c := range candidates {
			if c.State.IsTimeoutHandled() {
				if err := r.DeleteTransferTimeout(ctx, c.TimeoutID); err != nil {
					return err
				}
				report.Collected++
				continue
			}
			if !domain.CanTransition(c.State, domain.StateReservedTimeout) || now.Before(c.ExpirationDate) {
				continue
			}

			transfer, err := r.GetTransfer(ctx, c.ID)
			if err != nil {
				return err
			}
			payer, _, err := s.transfers.transferLegs(ctx, r, c.ID)
			if err != nil {
				return err
			}
			// Same lock discipline as fulfil: position lock first, then
			// re-read state inside this transaction.
			if _, err := r.GetPositionForUpdate(ctx, payer.ParticipantCurrencyID); err != nil {
				return err
			}
			current, err := r.GetLatestTransferState(ctx, c.ID)
			if err != nil {
				return err
			}
			if !domain.CanTransition(current.State, domain.StateReservedTimeout) {
				continue
			}
			evts, err := s.transfers.expireLocked(ctx, r, transfer, payer)
			if err != nil {
				return err
			}
			if err := r.DeleteTransferTimeout(ctx, c.TimeoutID); err != nil {
				return err
			}
			pending = append(pending, evts...)
			report.Expired++
			observability.IncrementSweepExpired("transfer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(r *repository.Repository) error {
		candidates, err := r.ListFxTimeoutCandidates(ctx)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, c := range candidates {
			if c.State.IsTimeoutHandled() {
				if err := r.DeleteFxTransferTimeout(ctx, c.TimeoutID); err != nil {
					return err
				}
				report.Collected++
				continue
			}
			// A leg parked in RECEIVED_FULFIL_DEPENDENT still holds its
			// reservation; if its determining transfer never commits, this
			// is the only path that frees it.
			if !domain.CanTransition(c.State, domain.StateExpiredReserved) || now.Before(c.ExpirationDate) {
				continue
			}

			fx, err := r.GetFxTransfer(ctx, c.ID)
			if err != nil {
				return err
			}
			legs, err := fxLegs(ctx, r, c.ID)
			if err != nil {
				return err
			}
			if _, err := r.GetPositionForUpdate(ctx, legs.initiatingSource.ParticipantCurrencyID); err != nil {
				return err
			}
			current, err := r.GetLatestFxTransferState(ctx, c.ID)
			if err != nil {
				return err
			}
			if !domain.CanTransition(current.State, domain.StateExpiredReserved) {
				continue
			}
			evts, err := s.fxTransfers.expireLocked(ctx, r, fx, legs.initiatingSource, current.State)
			if err != nil {
				return err
			}
			if err := r.DeleteFxTransferTimeout(ctx, c.TimeoutID); err != nil {
				return err
			}
			pending = append(pending, evts...)
			report.FxExpired++
			observability.IncrementSweepExpired("fx_transfer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range pending {
		if pubErr := s.publisher.Publish(ctx, e.topic, e.key, e.payload); pubErr != nil {
			s.logger.Warn("timeout event publish failed", zap.String("topic", e.topic), zap.Error(pubErr))
		}
	}

	observability.ObserveSweepDuration(time.Since(started))
	if report.Collected > 0 || report.Expired > 0 || report.FxExpired > 0 {
		s.logger.Info("timeout sweep complete",
			zap.Int("collected", report.Collected),
			zap.Int("expired", report.Expired),
			zap.Int("fx_expired", report.FxExpired),
			zap.Duration("duration", time.Since(started)))
	}
	return report, nil
}
