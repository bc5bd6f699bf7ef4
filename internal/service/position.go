package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/models"
	"github.com/kayode-ade/central-ledger/internal/observability"
	"github.com/kayode-ade/central-ledger/internal/repository"
)

// PositionEngine applies deltas to participant positions. Every method must
// be called with a transaction-bound repository: the FOR UPDATE read and the
// dependent write happen inside the same transaction, which is what
// serializes concurrent transfers on the same account.
type PositionEngine struct{}

func NewPositionEngine() *PositionEngine {
	return &PositionEngine{}
}

// Reserve places a provisional hold of amount on the account, enforcing the
// active NET_DEBIT_CAP first. On a cap violation nothing is written and
// domain.ErrLimitExceeded is returned.
//
// Sign convention: value is receivable-positive, so a payer's committed
// obligations drive it negative. Net payable exposure is therefore
// reservedValue minus value, and that is what the cap bounds.
func (e *PositionEngine) Reserve(ctx context.Context, r *repository.Repository, participantCurrencyID int64, amount decimal.Decimal, stateChangeID int64) (*models.ParticipantPosition, error) {
	pos, err := r.GetPositionForUpdate(ctx, participantCurrencyID)
	if err != nil {
		return nil, err
	}

	limit, err := r.GetActiveLimit(ctx, participantCurrencyID, domain.LimitTypeNetDebitCap)
	if err != nil && err != domain.ErrLimitNotFound {
		return nil, err
	}
	if limit != nil {
		projected := pos.ReservedValue.Add(amount).Sub(pos.Value)
		if projected.GreaterThan(limit.Value) {
			return nil, fmt.Errorf("%w: projected exposure %s exceeds cap %s",
				domain.ErrLimitExceeded, projected.String(), limit.Value.String())
		}
	}

	pos.ReservedValue = pos.ReservedValue.Add(amount)
	if err := e.persist(ctx, r, pos, stateChangeID, "reserve"); err != nil {
		return nil, err
	}
	return pos, nil
}

// Commit resolves a reservation on the debited account: the hold is freed
// and the obligation lands in value, pushing it toward payable.
func (e *PositionEngine) Commit(ctx context.Context, r *repository.Repository, participantCurrencyID int64, amount decimal.Decimal, stateChangeID int64) (*models.ParticipantPosition, error) {
	pos, err := r.GetPositionForUpdate(ctx, participantCurrencyID)
	if err != nil {
		return nil, err
	}
	pos.Value = pos.Value.Sub(amount)
	pos.ReservedValue = pos.ReservedValue.Sub(amount)
	if err := e.persist(ctx, r, pos, stateChangeID, "commit"); err != nil {
		return nil, err
	}
	return pos, nil
}

// Apply settles a signed obligation straight into value with no reservation
// involved. A positive obligation debits the account, a negative one credits
// it, matching the sign of the stored participant legs.
func (e *PositionEngine) Apply(ctx context.Context, r *repository.Repository, participantCurrencyID int64, obligation decimal.Decimal, stateChangeID int64) (*models.ParticipantPosition, error) {
	pos, err := r.GetPositionForUpdate(ctx, participantCurrencyID)
	if err != nil {
		return nil, err
	}
	pos.Value = pos.Value.Sub(obligation)
	if err := e.persist(ctx, r, pos, stateChangeID, "apply"); err != nil {
		return nil, err
	}
	return pos, nil
}

// Release frees a reservation without touching value. Used on
// abort/reject/timeout; exactly once per reservation.
func (e *PositionEngine) Release(ctx context.Context, r *repository.Repository, participantCurrencyID int64, amount decimal.Decimal, stateChangeID int64) (*models.ParticipantPosition, error) {
	pos, err := r.GetPositionForUpdate(ctx, participantCurrencyID)
	if err != nil {
		return nil, err
	}
	pos.ReservedValue = pos.ReservedValue.Sub(amount)
	if err := e.persist(ctx, r, pos, stateChangeID, "release"); err != nil {
		return nil, err
	}
	return pos, nil
}

// Reset zeroes the settled value, leaving reservations intact. Used by
// settlement execution for models with autoPositionReset.
func (e *PositionEngine) Reset(ctx context.Context, r *repository.Repository, participantCurrencyID int64, stateChangeID int64) (*models.ParticipantPosition, error) {
	pos, err := r.GetPositionForUpdate(ctx, participantCurrencyID)
	if err != nil {
		return nil, err
	}
	pos.Value = decimal.Zero
	if err := e.persist(ctx, r, pos, stateChangeID, "reset"); err != nil {
		return nil, err
	}
	return pos, nil
}

// LockOrdered takes FOR UPDATE locks on the given position rows in ascending
// account id order. Transactions that touch the same pair of accounts in
// opposite directions would otherwise acquire the rows in opposite order and
// deadlock.
func (e *PositionEngine) LockOrdered(ctx context.Context, r *repository.Repository, participantCurrencyIDs ...int64) error {
	ids := append([]int64(nil), participantCurrencyIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		if _, err := r.GetPositionForUpdate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *PositionEngine) persist(ctx context.Context, r *repository.Repository, pos *models.ParticipantPosition, stateChangeID int64, action string) error {
	if err := r.UpdatePosition(ctx, pos.ID, pos.Value, pos.ReservedValue); err != nil {
		return err
	}
	change := &models.ParticipantPositionChange{
		ParticipantPositionID: pos.ID,
		TransferStateChangeID: stateChangeID,
		Value:                 pos.Value,
		ReservedValue:         pos.ReservedValue,
	}
	if err := r.InsertPositionChange(ctx, change); err != nil {
		return err
	}
	observability.IncrementPositionChange(action)
	return nil
}
