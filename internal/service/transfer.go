package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/events"
	"github.com/kayode-ade/central-ledger/internal/models"
	"github.com/kayode-ade/central-ledger/internal/observability"
	"github.com/kayode-ade/central-ledger/internal/repository"
)

// TransferService drives the PREPARE/FULFIL/ABORT protocol for plain
// transfers. All state reads happen inside the same transaction as the
// writes that depend on them, under the payer position row lock.
type TransferService struct {
	store     QueryStore
	positions *PositionEngine
	publisher events.Publisher
	logger    *zap.Logger
}

func NewTransferService(store QueryStore, positions *PositionEngine, publisher events.Publisher, logger *zap.Logger) *TransferService {
	return &TransferService{
		store:     store,
		positions: positions,
		publisher: publisher,
		logger:    logger,
	}
}

type PrepareTransferRequest struct {
	TransferID uuid.UUID `json:"transfer_id"`
	PayerFsp   string    `json:"payer_fsp"`
	PayeeFsp   string    `json:"payee_fsp"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Condition  string    `json:"condition"`
	Expiration time.Time `json:"expiration"`
}

// TransferResult reports the resulting internal state for the transport
// layer to translate into a protocol callback.
type TransferResult struct {
	TransferID uuid.UUID            `json:"transfer_id"`
	State      domain.TransferState `json:"state"`
	Replayed   bool                 `json:"replayed,omitempty"`
}

type pendingEvent struct {
	topic   string
	key     string
	payload any
}

// Prepare validates and records a new transfer, reserving the amount on the
// payer position. A net-debit-cap violation marks the transfer INVALID and
// is reported as domain.ErrLimitExceeded; the reservation is never taken.
func (s *TransferService) Prepare(ctx context.Context, req PrepareTransferRequest) (*TransferResult, error) {
	hash, err := HashPayload(req)
	if err != nil {
		return nil, err
	}
	if req.TransferID == uuid.Nil {
		return nil, fmt.Errorf("%w: transfer_id is required", domain.ErrValidation)
	}
	if req.PayerFsp == req.PayeeFsp {
		return nil, fmt.Errorf("%w: payer and payee must differ", domain.ErrValidation)
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCondition(req.Condition); err != nil {
		return nil, err
	}
	if !req.Expiration.After(time.Now()) {
		return nil, fmt.Errorf("%w: expiration must be in the future", domain.ErrValidation)
	}

	payerAccount, err := s.resolveActiveAccount(ctx, req.PayerFsp, req.Currency)
	if err != nil {
		return nil, err
	}
	payeeAccount, err := s.resolveActiveAccount(ctx, req.PayeeFsp, req.Currency)
	if err != nil {
		return nil, err
	}

	var (
		result  TransferResult
		pending []pendingEvent
		bizErr  error
	)
	err = s.store.RunInTx(ctx, func(r *repository.Repository) error {
		if err := checkDuplicate(ctx, r, "transfer_duplicate_check", req.TransferID, hash); err != nil {
			if errors.Is(err, domain.ErrDuplicateRequest) {
				state, stErr := r.GetLatestTransferState(ctx, req.TransferID)
				if stErr != nil {
					return stErr
				}
				result = TransferResult{TransferID: req.TransferID, State: state.State, Replayed: true}
				return nil
			}
			return err
		}

		transfer := &models.Transfer{
			ID:             req.TransferID,
			Amount:         amount,
			CurrencyID:     payerAccount.CurrencyID,
			ILPCondition:   req.Condition,
			ExpirationDate: req.Expiration.UTC(),
		}
		if err := r.CreateTransfer(ctx, transfer); err != nil {
			return err
		}
		for _, tp := range []models.TransferParticipant{
			{TransferID: req.TransferID, ParticipantCurrencyID: payerAccount.ID, Role: domain.RoleInitiatingFSP, Amount: amount},
			{TransferID: req.TransferID, ParticipantCurrencyID: payeeAccount.ID, Role: domain.RoleCounterPartyFSP, Amount: amount.Neg()},
		} {
			if err := r.InsertTransferParticipant(ctx, &tp); err != nil {
				return err
			}
		}

		received := &models.TransferStateChange{TransferID: req.TransferID, State: domain.StateReceivedPrepare}
		if err := r.InsertTransferStateChange(ctx, received); err != nil {
			return err
		}

		pos, err := s.positions.Reserve(ctx, r, payerAccount.ID, amount, received.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrLimitExceeded) {
				return err
			}
			observability.IncrementLimitBreach(payerAccount.CurrencyID)
			invalid := &models.TransferStateChange{
				TransferID: req.TransferID,
				State:      domain.StateInvalid,
				Reason:     "net debit cap exceeded",
			}
			if err := r.InsertTransferStateChange(ctx, invalid); err != nil {
				return err
			}
			if err := r.InsertTransferError(ctx, &models.TransferError{
				TransferID:            req.TransferID,
				TransferStateChangeID: invalid.ID,
				ErrorCode:             domain.ErrorCodePayerLimitError,
				ErrorDescription:      "payer limit exceeded",
			}); err != nil {
				return err
			}
			result = TransferResult{TransferID: req.TransferID, State: domain.StateInvalid}
			pending = append(pending, s.stateEvent("prepare", req.TransferID, domain.StateInvalid, payerAccount.ID))
			bizErr = err
			return nil
		}

		reserved := &models.TransferStateChange{TransferID: req.TransferID, State: domain.StateReserved}
		if err := r.InsertTransferStateChange(ctx, reserved); err != nil {
			return err
		}
		if err := r.InsertTransferTimeout(ctx, req.TransferID, transfer.ExpirationDate); err != nil {
			return err
		}

		result = TransferResult{TransferID: req.TransferID, State: domain.StateReserved}
		pending = append(pending,
			s.stateEvent("prepare", req.TransferID, domain.StateReserved, payerAccount.ID),
			s.positionEvent("reserve", req.TransferID, payerAccount.ID, pos))
		observability.IncrementStateTransition("transfer", string(domain.StateReserved))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, pending)
	if bizErr != nil {
		return &result, bizErr
	}
	return &result, nil
}

type FulfilTransferRequest struct {
	Fulfilment string `json:"fulfilment"`
}

// Fulfil commits a reserved transfer after verifying the fulfilment against
// the prepared condition. On success the payer reservation is resolved, the
// payee position is credited, and any fx legs waiting on this determining
// transfer are finalized.
func (s *TransferService) Fulfil(ctx context.Context, transferID uuid.UUID, req FulfilTransferRequest) (*TransferResult, error) {
	hash, err := HashPayload(req)
	if err != nil {
		return nil, err
	}

	var (
		result  TransferResult
		pending []pendingEvent
		bizErr  error
	)
	err = s.store.RunInTx(ctx, func(r *repository.Repository) error {
		if err := checkDuplicate(ctx, r, "transfer_fulfilment_duplicate_check", transferID, hash); err != nil {
			if errors.Is(err, domain.ErrDuplicateRequest) {
				state, stErr := r.GetLatestTransferState(ctx, transferID)
				if stErr != nil {
					return stErr
				}
				result = TransferResult{TransferID: transferID, State: state.State, Replayed: true}
				return nil
			}
			return err
		}

		transfer, err := r.GetTransfer(ctx, transferID)
		if err != nil {
			return err
		}
		payer, payee, err := s.transferLegs(ctx, r, transferID)
		if err != nil {
			return err
		}

		// Lock both position rows before reading state. The payer lock is
		// what keeps fulfil and the sweeper's expire path from interleaving
		// on one transfer; taking both in ascending id order keeps opposing
		// fulfils (A->B and B->A) from deadlocking on each other.
		if err := s.positions.LockOrdered(ctx, r, payer.ParticipantCurrencyID, payee.ParticipantCurrencyID); err != nil {
			return err
		}
		current, err := r.GetLatestTransferState(ctx, transferID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(current.State, domain.StateReceivedFulfil) {
			bizErr = fmt.Errorf("%w: transfer %s is %s", domain.ErrNonReservedState, transferID, current.State)
			result = TransferResult{TransferID: transferID, State: current.State}
			return nil
		}

		if time.Now().After(transfer.ExpirationDate) {
			evts, expErr := s.expireLocked(ctx, r, transfer, payer)
			if expErr != nil {
				return expErr
			}
			pending = append(pending, evts...)
			result = TransferResult{TransferID: transferID, State: domain.StateExpiredReserved}
			bizErr = domain.ErrTransferExpired
			return nil
		}

		if err := domain.VerifyFulfilment(req.Fulfilment, transfer.ILPCondition); err != nil {
			evts, abortErr := s.abortLocked(ctx, r, transfer, payer,
				domain.ErrorCodeInvalidFulfilment, "fulfilment did not match condition")
			if abortErr != nil {
				return abortErr
			}
			pending = append(pending, evts...)
			result = TransferResult{TransferID: transferID, State: domain.StateAbortedError}
			bizErr = err
			return nil
		}

		receivedFulfil := &models.TransferStateChange{TransferID: transferID, State: domain.StateReceivedFulfil}
		if err := r.InsertTransferStateChange(ctx, receivedFulfil); err != nil {
			return err
		}
		committed := &models.TransferStateChange{TransferID: transferID, State: domain.StateCommitted}
		if err := r.InsertTransferStateChange(ctx, committed); err != nil {
			return err
		}

		payerPos, err := s.positions.Commit(ctx, r, payer.ParticipantCurrencyID, payer.Amount, committed.ID)
		if err != nil {
			return err
		}
		payeePos, err := s.positions.Apply(ctx, r, payee.ParticipantCurrencyID, payee.Amount, committed.ID)
		if err != nil {
			return err
		}

		windowID, err := r.GetOpenWindowID(ctx)
		if err != nil {
			return err
		}
		if err := r.AssignTransferToWindow(ctx, transferID, windowID); err != nil {
			return err
		}

		fxEvents, err := s.finalizeDependentFxLegs(ctx, r, transferID)
		if err != nil {
			return err
		}

		result = TransferResult{TransferID: transferID, State: domain.StateCommitted}
		pending = append(pending,
			s.stateEvent("fulfil", transferID, domain.StateCommitted, payer.ParticipantCurrencyID),
			s.positionEvent("commit", transferID, payer.ParticipantCurrencyID, payerPos),
			s.positionEvent("apply", transferID, payee.ParticipantCurrencyID, payeePos))
		pending = append(pending, fxEvents...)
		observability.IncrementStateTransition("transfer", string(domain.StateCommitted))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, pending)
	if bizErr != nil {
		return &result, bizErr
	}
	return &result, nil
}

// Reject handles a payee decline before fulfilment: the reservation is
// released and the transfer ends ABORTED_REJECTED.
func (s *TransferService) Reject(ctx context.Context, transferID uuid.UUID, reason string) (*TransferResult, error) {
	return s.abortPath(ctx, transferID, domain.StateReceivedReject, domain.StateAbortedRejected, "", reason)
}

// AbortWithError handles a protocol-level error from the counterparty; a
// transfer_error row records the code.
func (s *TransferService) AbortWithError(ctx context.Context, transferID uuid.UUID, errorCode, description string) (*TransferResult, error) {
	if errorCode == "" {
		errorCode = domain.ErrorCodeInternal
	}
	return s.abortPath(ctx, transferID, domain.StateReceivedError, domain.StateAbortedError, errorCode, description)
}

func (s *TransferService) abortPath(ctx context.Context, transferID uuid.UUID, intermediate, terminal domain.TransferState, errorCode, reason string) (*TransferResult, error) {
	var (
		result  TransferResult
		pending []pendingEvent
		bizErr  error
	)
	err := s.store.RunInTx(ctx, func(r *repository.Repository) error {
		payer, _, err := s.transferLegs(ctx, r, transferID)
		if err != nil {
			return err
		}
		if _, err := r.GetPositionForUpdate(ctx, payer.ParticipantCurrencyID); err != nil {
			return err
		}
		current, err := r.GetLatestTransferState(ctx, transferID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(current.State, intermediate) {
			bizErr = fmt.Errorf("%w: transfer %s is %s", domain.ErrNonReservedState, transferID, current.State)
			result = TransferResult{TransferID: transferID, State: current.State}
			return nil
		}

		received := &models.TransferStateChange{TransferID: transferID, State: intermediate, Reason: reason}
		if err := r.InsertTransferStateChange(ctx, received); err != nil {
			return err
		}
		final := &models.TransferStateChange{TransferID: transferID, State: terminal, Reason: reason}
		if err := r.InsertTransferStateChange(ctx, final); err != nil {
			return err
		}
		pos, err := s.positions.Release(ctx, r, payer.ParticipantCurrencyID, payer.Amount, final.ID)
		if err != nil {
			return err
		}
		if errorCode != "" {
			if err := r.InsertTransferError(ctx, &models.TransferError{
				TransferID:            transferID,
				TransferStateChangeID: final.ID,
				ErrorCode:             errorCode,
				ErrorDescription:      reason,
			}); err != nil {
				return err
			}
		}

		result = TransferResult{TransferID: transferID, State: terminal}
		pending = append(pending,
			s.stateEvent("abort", transferID, terminal, payer.ParticipantCurrencyID),
			s.positionEvent("release", transferID, payer.ParticipantCurrencyID, pos))
		observability.IncrementStateTransition("transfer", string(terminal))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, pending)
	if bizErr != nil {
		return &result, bizErr
	}
	return &result, nil
}

// expireLocked drives RESERVED -> RESERVED_TIMEOUT -> EXPIRED_RESERVED and
// releases the reservation. Caller must hold the payer position lock and
// have verified the RESERVED state in the same transaction.
func (s *TransferService) expireLocked(ctx context.Context, r *repository.Repository, transfer *models.Transfer, payer *models.TransferParticipant) ([]pendingEvent, error) {
	timeout := &models.TransferStateChange{TransferID: transfer.ID, State: domain.StateReservedTimeout, Reason: "expired"}
	if err := r.InsertTransferStateChange(ctx, timeout); err != nil {
		return nil, err
	}
	expired := &models.TransferStateChange{TransferID: transfer.ID, State: domain.StateExpiredReserved, Reason: "expired"}
	if err := r.InsertTransferStateChange(ctx, expired); err != nil {
		return nil, err
	}
	pos, err := s.positions.Release(ctx, r, payer.ParticipantCurrencyID, payer.Amount, expired.ID)
	if err != nil {
		return nil, err
	}
	if err := r.InsertTransferError(ctx, &models.TransferError{
		TransferID:            transfer.ID,
		TransferStateChangeID: expired.ID,
		ErrorCode:             domain.ErrorCodeTransferExpired,
		ErrorDescription:      "transfer expired",
	}); err != nil {
		return nil, err
	}
	observability.IncrementStateTransition("transfer", string(domain.StateExpiredReserved))
	return []pendingEvent{
		s.stateEvent("timeout", transfer.ID, domain.StateExpiredReserved, payer.ParticipantCurrencyID),
		s.positionEvent("release", transfer.ID, payer.ParticipantCurrencyID, pos),
		{topic: events.TopicTimeout, key: fmt.Sprint(payer.ParticipantCurrencyID), payload: events.TransferStateEvent{
			Action:                "timeout-reserved",
			TransferID:            transfer.ID.String(),
			NewState:              string(domain.StateExpiredReserved),
			ParticipantCurrencyID: payer.ParticipantCurrencyID,
			Timestamp:             time.Now().UTC(),
		}},
	}, nil
}

func (s *TransferService) abortLocked(ctx context.Context, r *repository.Repository, transfer *models.Transfer, payer *models.TransferParticipant, errorCode, reason string) ([]pendingEvent, error) {
	received := &models.TransferStateChange{TransferID: transfer.ID, State: domain.StateReceivedError, Reason: reason}
	if err := r.InsertTransferStateChange(ctx, received); err != nil {
		return nil, err
	}
	aborted := &models.TransferStateChange{TransferID: transfer.ID, State: domain.StateAbortedError, Reason: reason}
	if err := r.InsertTransferStateChange(ctx, aborted); err != nil {
		return nil, err
	}
	pos, err := s.positions.Release(ctx, r, payer.ParticipantCurrencyID, payer.Amount, aborted.ID)
	if err != nil {
		return nil, err
	}
	if err := r.InsertTransferError(ctx, &models.TransferError{
		TransferID:            transfer.ID,
		TransferStateChangeID: aborted.ID,
		ErrorCode:             errorCode,
		ErrorDescription:      reason,
	}); err != nil {
		return nil, err
	}
	observability.IncrementStateTransition("transfer", string(domain.StateAbortedError))
	return []pendingEvent{
		s.stateEvent("abort", transfer.ID, domain.StateAbortedError, payer.ParticipantCurrencyID),
		s.positionEvent("release", transfer.ID, payer.ParticipantCurrencyID, pos),
	}, nil
}

// GetTransfer returns the transfer with its current state and error, if any.
type TransferView struct {
	Transfer models.Transfer       `json:"transfer"`
	State    domain.TransferState  `json:"state"`
	Error    *models.TransferError `json:"error,omitempty"`
}

func (s *TransferService) GetTransfer(ctx context.Context, transferID uuid.UUID) (*TransferView, error) {
	transfer, err := s.store.Repo().GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	state, err := s.store.Repo().GetLatestTransferState(ctx, transferID)
	if err != nil {
		return nil, err
	}
	view := &TransferView{Transfer: *transfer, State: state.State}
	if terr, err := s.store.Repo().GetTransferError(ctx, transferID); err == nil {
		view.Error = terr
	}
	return view, nil
}

func (s *TransferService) transferLegs(ctx context.Context, r *repository.Repository, transferID uuid.UUID) (payer, payee *models.TransferParticipant, err error) {
	legs, err := r.ListTransferParticipants(ctx, transferID)
	if err != nil {
		return nil, nil, err
	}
	for i := range legs {
		switch legs[i].Role {
		case domain.RoleInitiatingFSP:
			payer = &legs[i]
		case domain.RoleCounterPartyFSP:
			payee = &legs[i]
		}
	}
	if payer == nil || payee == nil {
		return nil, nil, fmt.Errorf("transfer %s has incomplete participant legs", transferID)
	}
	return payer, payee, nil
}

func (s *TransferService) resolveActiveAccount(ctx context.Context, fspName, currency string) (*models.ParticipantCurrencyAccount, error) {
	p, err := s.store.Repo().GetParticipantByName(ctx, fspName)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: %s", domain.ErrParticipantInactive, fspName)
	}
	account, err := s.store.Repo().GetParticipantAccount(ctx, p.ID, currency, domain.AccountTypePosition)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrAccountInactive, fspName, currency)
	}
	return account, nil
}

func (s *TransferService) stateEvent(action string, transferID uuid.UUID, state domain.TransferState, participantCurrencyID int64) pendingEvent {
	return pendingEvent{
		topic: events.TopicTransferState,
		key:   fmt.Sprint(participantCurrencyID),
		payload: events.TransferStateEvent{
			Action:                action,
			TransferID:            transferID.String(),
			NewState:              string(state),
			ParticipantCurrencyID: participantCurrencyID,
			Timestamp:             time.Now().UTC(),
		},
	}
}

func (s *TransferService) positionEvent(action string, transferID uuid.UUID, participantCurrencyID int64, pos *models.ParticipantPosition) pendingEvent {
	return pendingEvent{
		topic: events.TopicPositionChange,
		key:   fmt.Sprint(participantCurrencyID),
		payload: events.PositionChangeEvent{
			Action:                action,
			TransferID:            transferID.String(),
			ParticipantCurrencyID: participantCurrencyID,
			Value:                 domain.FormatAmount(pos.Value),
			ReservedValue:         domain.FormatAmount(pos.ReservedValue),
			Timestamp:             time.Now().UTC(),
		},
	}
}

// flush publishes events collected during a committed transaction. Publish
// failures are logged, not propagated: the ledger state is already durable.
func (s *TransferService) flush(ctx context.Context, pending []pendingEvent) {
	for _, e := range pending {
		if err := s.publisher.Publish(ctx, e.topic, e.key, e.payload); err != nil {
			s.logger.Warn("event publish failed", zap.String("topic", e.topic), zap.Error(err))
		}
	}
}
