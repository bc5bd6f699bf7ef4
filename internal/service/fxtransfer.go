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

// FxTransferService drives the currency-conversion leg executed by an FXP.
// Its fulfilment may arrive before or after the determining transfer
// commits; position effects are only finalized once both legs resolve.
type FxTransferService struct {
	store     QueryStore
	positions *PositionEngine
	publisher events.Publisher
	logger    *zap.Logger
}

func NewFxTransferService(store QueryStore, positions *PositionEngine, publisher events.Publisher, logger *zap.Logger) *FxTransferService {
	return &FxTransferService{
		store:     store,
		positions: positions,
		publisher: publisher,
		logger:    logger,
	}
}

type PrepareFxTransferRequest struct {
	CommitRequestID       uuid.UUID `json:"commit_request_id"`
	DeterminingTransferID uuid.UUID `json:"determining_transfer_id"`
	InitiatingFsp         string    `json:"initiating_fsp"`
	CounterPartyFsp       string    `json:"counter_party_fsp"`
	SourceAmount          string    `json:"source_amount"`
	SourceCurrency        string    `json:"source_currency"`
	TargetAmount          string    `json:"target_amount"`
	TargetCurrency        string    `json:"target_currency"`
	Condition             string    `json:"condition"`
	Expiration            time.Time `json:"expiration"`
}

// PrepareFx validates and records an fx-transfer, reserving the source
// amount on the initiating FSP's source-currency position.
func (s *FxTransferService) PrepareFx(ctx context.Context, req PrepareFxTransferRequest) (*TransferResult, error) {
	hash, err := HashPayload(req)
	if err != nil {
		return nil, err
	}
	if req.CommitRequestID == uuid.Nil || req.DeterminingTransferID == uuid.Nil {
		return nil, fmt.Errorf("%w: commit_request_id and determining_transfer_id are required", domain.ErrValidation)
	}
	if req.SourceCurrency == req.TargetCurrency {
		return nil, fmt.Errorf("%w: source and target currency must differ", domain.ErrValidation)
	}
	sourceAmount, err := domain.ParseAmount(req.SourceAmount)
	if err != nil {
		return nil, err
	}
	targetAmount, err := domain.ParseAmount(req.TargetAmount)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCondition(req.Condition); err != nil {
		return nil, err
	}
	if !req.Expiration.After(time.Now()) {
		return nil, fmt.Errorf("%w: expiration must be in the future", domain.ErrValidation)
	}

	repo := s.store.Repo()
	initiating, err := repo.GetParticipantByName(ctx, req.InitiatingFsp)
	if err != nil {
		return nil, err
	}
	fxp, err := repo.GetParticipantByName(ctx, req.CounterPartyFsp)
	if err != nil {
		return nil, err
	}
	if !initiating.IsActive || !fxp.IsActive {
		return nil, domain.ErrParticipantInactive
	}
	initiatingSource, err := repo.GetParticipantAccount(ctx, initiating.ID, req.SourceCurrency, domain.AccountTypePosition)
	if err != nil {
		return nil, err
	}
	fxpSource, err := repo.GetParticipantAccount(ctx, fxp.ID, req.SourceCurrency, domain.AccountTypePosition)
	if err != nil {
		return nil, err
	}
	fxpTarget, err := repo.GetParticipantAccount(ctx, fxp.ID, req.TargetCurrency, domain.AccountTypePosition)
	if err != nil {
		return nil, err
	}

	var (
		result  TransferResult
		pending []pendingEvent
		bizErr  error
	)
	err = s.store.RunInTx(ctx, func(r *repository.Repository) error {
		if err := checkDuplicate(ctx, r, "fx_transfer_duplicate_check", req.CommitRequestID, hash); err != nil {
			if errors.Is(err, domain.ErrDuplicateRequest) {
				state, stErr := r.GetLatestFxTransferState(ctx, req.CommitRequestID)
				if stErr != nil {
					return stErr
				}
				result = TransferResult{TransferID: req.CommitRequestID, State: state.State, Replayed: true}
				return nil
			}
			return err
		}

		fx := &models.FxTransfer{
			ID:                    req.CommitRequestID,
			DeterminingTransferID: req.DeterminingTransferID,
			InitiatingFspID:       initiating.ID,
			CounterPartyFspID:     fxp.ID,
			SourceAmount:          sourceAmount,
			SourceCurrencyID:      initiatingSource.CurrencyID,
			TargetAmount:          targetAmount,
			TargetCurrencyID:      fxpTarget.CurrencyID,
			ILPCondition:          req.Condition,
			ExpirationDate:        req.Expiration.UTC(),
		}
		if err := r.CreateFxTransfer(ctx, fx); err != nil {
			return err
		}
		for _, fp := range []models.FxTransferParticipant{
			{CommitRequestID: fx.ID, ParticipantCurrencyID: initiatingSource.ID, Role: domain.RoleInitiatingFSP, CurrencyType: domain.FxCurrencySource, Amount: sourceAmount},
			{CommitRequestID: fx.ID, ParticipantCurrencyID: fxpSource.ID, Role: domain.RoleCounterPartyFSP, CurrencyType: domain.FxCurrencySource, Amount: sourceAmount.Neg()},
			{CommitRequestID: fx.ID, ParticipantCurrencyID: fxpTarget.ID, Role: domain.RoleCounterPartyFSP, CurrencyType: domain.FxCurrencyTarget, Amount: targetAmount},
		} {
			if err := r.InsertFxTransferParticipant(ctx, &fp); err != nil {
				return err
			}
		}

		received := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateReceivedPrepare}
		if err := r.InsertFxTransferStateChange(ctx, received); err != nil {
			return err
		}

		pos, err := s.positions.Reserve(ctx, r, initiatingSource.ID, sourceAmount, received.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrLimitExceeded) {
				return err
			}
			observability.IncrementLimitBreach(initiatingSource.CurrencyID)
			invalid := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateInvalid, Reason: "net debit cap exceeded"}
			if err := r.InsertFxTransferStateChange(ctx, invalid); err != nil {
				return err
			}
			if err := r.InsertFxTransferError(ctx, &models.FxTransferError{
				CommitRequestID:         fx.ID,
				FxTransferStateChangeID: invalid.ID,
				ErrorCode:               domain.ErrorCodePayerLimitError,
				ErrorDescription:        "payer limit exceeded",
			}); err != nil {
				return err
			}
			result = TransferResult{TransferID: fx.ID, State: domain.StateInvalid}
			bizErr = err
			return nil
		}

		reserved := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateReserved}
		if err := r.InsertFxTransferStateChange(ctx, reserved); err != nil {
			return err
		}
		if err := r.InsertFxTransferTimeout(ctx, fx.ID, fx.ExpirationDate); err != nil {
			return err
		}

		result = TransferResult{TransferID: fx.ID, State: domain.StateReserved}
		pending = append(pending,
			fxStateEvent("prepare", fx.ID, domain.StateReserved, initiatingSource.ID),
			fxPositionEvent("reserve", fx.ID, initiatingSource.ID, pos))
		observability.IncrementStateTransition("fx_transfer", string(domain.StateReserved))
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

// FulfilFx verifies the FXP's fulfilment. If the determining transfer has
// already committed the fx leg commits immediately; otherwise it parks in
// RECEIVED_FULFIL_DEPENDENT with no position effects until the determining
// transfer resolves.
func (s *FxTransferService) FulfilFx(ctx context.Context, commitRequestID uuid.UUID, req FulfilTransferRequest) (*TransferResult, error) {
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
		if err := checkDuplicate(ctx, r, "fx_transfer_fulfilment_duplicate_check", commitRequestID, hash); err != nil {
			if errors.Is(err, domain.ErrDuplicateRequest) {
				state, stErr := r.GetLatestFxTransferState(ctx, commitRequestID)
				if stErr != nil {
					return stErr
				}
				result = TransferResult{TransferID: commitRequestID, State: state.State, Replayed: true}
				return nil
			}
			return err
		}

		fx, err := r.GetFxTransfer(ctx, commitRequestID)
		if err != nil {
			return err
		}
		legs, err := fxLegs(ctx, r, commitRequestID)
		if err != nil {
			return err
		}

		// Both source-currency rows in ascending id order, same deadlock
		// discipline as the plain fulfil path.
		if err := s.positions.LockOrdered(ctx, r,
			legs.initiatingSource.ParticipantCurrencyID, legs.fxpSource.ParticipantCurrencyID); err != nil {
			return err
		}
		current, err := r.GetLatestFxTransferState(ctx, commitRequestID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(current.State, domain.StateReceivedFulfil) {
			bizErr = fmt.Errorf("%w: fx transfer %s is %s", domain.ErrNonReservedState, commitRequestID, current.State)
			result = TransferResult{TransferID: commitRequestID, State: current.State}
			return nil
		}

		if time.Now().After(fx.ExpirationDate) {
			evts, expErr := s.expireLocked(ctx, r, fx, legs.initiatingSource, current.State)
			if expErr != nil {
				return expErr
			}
			pending = append(pending, evts...)
			result = TransferResult{TransferID: commitRequestID, State: domain.StateExpiredReserved}
			bizErr = domain.ErrTransferExpired
			return nil
		}

		if err := domain.VerifyFulfilment(req.Fulfilment, fx.ILPCondition); err != nil {
			received := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateReceivedError, Reason: "fulfilment did not match condition"}
			if err := r.InsertFxTransferStateChange(ctx, received); err != nil {
				return err
			}
			aborted := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateAbortedError, Reason: "fulfilment did not match condition"}
			if err := r.InsertFxTransferStateChange(ctx, aborted); err != nil {
				return err
			}
			pos, relErr := s.positions.Release(ctx, r, legs.initiatingSource.ParticipantCurrencyID, legs.initiatingSource.Amount, aborted.ID)
			if relErr != nil {
				return relErr
			}
			if err := r.InsertFxTransferError(ctx, &models.FxTransferError{
				CommitRequestID:         fx.ID,
				FxTransferStateChangeID: aborted.ID,
				ErrorCode:               domain.ErrorCodeInvalidFulfilment,
				ErrorDescription:        "fulfilment did not match condition",
			}); err != nil {
				return err
			}
			pending = append(pending,
				fxStateEvent("abort", fx.ID, domain.StateAbortedError, legs.initiatingSource.ParticipantCurrencyID),
				fxPositionEvent("release", fx.ID, legs.initiatingSource.ParticipantCurrencyID, pos))
			result = TransferResult{TransferID: commitRequestID, State: domain.StateAbortedError}
			bizErr = domain.ErrInvalidFulfilment
			return nil
		}

		determining, err := r.GetLatestTransferState(ctx, fx.DeterminingTransferID)
		determiningCommitted := err == nil && determining.State == domain.StateCommitted
		if err != nil && !errors.Is(err, domain.ErrTransferNotFound) {
			return err
		}

		if !determiningCommitted {
			dependent := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateReceivedFulfilDependent}
			if err := r.InsertFxTransferStateChange(ctx, dependent); err != nil {
				return err
			}
			result = TransferResult{TransferID: commitRequestID, State: domain.StateReceivedFulfilDependent}
			pending = append(pending, fxStateEvent("fulfil-dependent", fx.ID, domain.StateReceivedFulfilDependent, legs.initiatingSource.ParticipantCurrencyID))
			observability.IncrementStateTransition("fx_transfer", string(domain.StateReceivedFulfilDependent))
			return nil
		}

		received := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateReceivedFulfil}
		if err := r.InsertFxTransferStateChange(ctx, received); err != nil {
			return err
		}
		committed := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateCommitted}
		if err := r.InsertFxTransferStateChange(ctx, committed); err != nil {
			return err
		}
		evts, err := commitFxPositions(ctx, r, s.positions, fx, legs, committed.ID)
		if err != nil {
			return err
		}
		pending = append(pending, evts...)
		result = TransferResult{TransferID: commitRequestID, State: domain.StateCommitted}
		observability.IncrementStateTransition("fx_transfer", string(domain.StateCommitted))
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

// FxTransferView pairs an fx-transfer with its current state.
type FxTransferView struct {
	FxTransfer models.FxTransfer    `json:"fx_transfer"`
	State      domain.TransferState `json:"state"`
}

func (s *FxTransferService) GetFxTransfer(ctx context.Context, commitRequestID uuid.UUID) (*FxTransferView, error) {
	fx, err := s.store.Repo().GetFxTransfer(ctx, commitRequestID)
	if err != nil {
		return nil, err
	}
	state, err := s.store.Repo().GetLatestFxTransferState(ctx, commitRequestID)
	if err != nil {
		return nil, err
	}
	return &FxTransferView{FxTransfer: *fx, State: state.State}, nil
}

// expireLocked releases only this leg's reservation; the determining
// transfer keeps its own reservation and is swept on its own expiration.
// A leg parked in RECEIVED_FULFIL_DEPENDENT moves straight to
// EXPIRED_RESERVED; a RESERVED leg passes through RESERVED_TIMEOUT first.
func (s *FxTransferService) expireLocked(ctx context.Context, r *repository.Repository, fx *models.FxTransfer, initiatingSource *models.FxTransferParticipant, from domain.TransferState) ([]pendingEvent, error) {
	if domain.CanTransition(from, domain.StateReservedTimeout) {
		timeout := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateReservedTimeout, Reason: "expired"}
		if err := r.InsertFxTransferStateChange(ctx, timeout); err != nil {
			return nil, err
		}
	}
	expired := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateExpiredReserved, Reason: "expired"}
	if err := r.InsertFxTransferStateChange(ctx, expired); err != nil {
		return nil, err
	}
	pos, err := s.positions.Release(ctx, r, initiatingSource.ParticipantCurrencyID, initiatingSource.Amount, expired.ID)
	if err != nil {
		return nil, err
	}
	if err := r.InsertFxTransferError(ctx, &models.FxTransferError{
		CommitRequestID:         fx.ID,
		FxTransferStateChangeID: expired.ID,
		ErrorCode:               domain.ErrorCodeTransferExpired,
		ErrorDescription:        "fx transfer expired",
	}); err != nil {
		return nil, err
	}
	observability.IncrementStateTransition("fx_transfer", string(domain.StateExpiredReserved))
	return []pendingEvent{
		fxStateEvent("timeout", fx.ID, domain.StateExpiredReserved, initiatingSource.ParticipantCurrencyID),
		fxPositionEvent("release", fx.ID, initiatingSource.ParticipantCurrencyID, pos),
		{topic: events.TopicTimeout, key: fmt.Sprint(initiatingSource.ParticipantCurrencyID), payload: events.TransferStateEvent{
			Action:                "timeout-reserved",
			TransferID:            fx.ID.String(),
			NewState:              string(domain.StateExpiredReserved),
			ParticipantCurrencyID: initiatingSource.ParticipantCurrencyID,
			IsFx:                  true,
			Timestamp:             time.Now().UTC(),
		}},
	}, nil
}

func (s *FxTransferService) flush(ctx context.Context, pending []pendingEvent) {
	for _, e := range pending {
		if err := s.publisher.Publish(ctx, e.topic, e.key, e.payload); err != nil {
			s.logger.Warn("event publish failed", zap.String("topic", e.topic), zap.Error(err))
		}
	}
}

// fxLegSet resolves the three participant rows of an fx-transfer.
type fxLegSet struct {
	initiatingSource *models.FxTransferParticipant
	fxpSource        *models.FxTransferParticipant
	fxpTarget        *models.FxTransferParticipant
}

func fxLegs(ctx context.Context, r *repository.Repository, commitRequestID uuid.UUID) (*fxLegSet, error) {
	rows, err := r.ListFxTransferParticipants(ctx, commitRequestID)
	if err != nil {
		return nil, err
	}
	legs := &fxLegSet{}
	for i := range rows {
		switch {
		case rows[i].Role == domain.RoleInitiatingFSP && rows[i].CurrencyType == domain.FxCurrencySource:
			legs.initiatingSource = &rows[i]
		case rows[i].Role == domain.RoleCounterPartyFSP && rows[i].CurrencyType == domain.FxCurrencySource:
			legs.fxpSource = &rows[i]
		case rows[i].Role == domain.RoleCounterPartyFSP && rows[i].CurrencyType == domain.FxCurrencyTarget:
			legs.fxpTarget = &rows[i]
		}
	}
	if legs.initiatingSource == nil || legs.fxpSource == nil || legs.fxpTarget == nil {
		return nil, fmt.Errorf("fx transfer %s has incomplete participant legs", commitRequestID)
	}
	return legs, nil
}

// commitFxPositions settles the source-currency side of the conversion: the
// initiating FSP's reservation resolves into payable value and the FXP is
// credited the source amount. The target side is carried entirely by the
// determining transfer, where the FXP stands as payer, so applying the
// target leg here would debit the FXP twice.
func commitFxPositions(ctx context.Context, r *repository.Repository, positions *PositionEngine, fx *models.FxTransfer, legs *fxLegSet, stateChangeID int64) ([]pendingEvent, error) {
	if err := positions.LockOrdered(ctx, r,
		legs.initiatingSource.ParticipantCurrencyID, legs.fxpSource.ParticipantCurrencyID); err != nil {
		return nil, err
	}
	initiatingPos, err := positions.Commit(ctx, r, legs.initiatingSource.ParticipantCurrencyID, legs.initiatingSource.Amount, stateChangeID)
	if err != nil {
		return nil, err
	}
	fxpSourcePos, err := positions.Apply(ctx, r, legs.fxpSource.ParticipantCurrencyID, legs.fxpSource.Amount, stateChangeID)
	if err != nil {
		return nil, err
	}
	return []pendingEvent{
		fxStateEvent("commit", fx.ID, domain.StateCommitted, legs.initiatingSource.ParticipantCurrencyID),
		fxPositionEvent("commit", fx.ID, legs.initiatingSource.ParticipantCurrencyID, initiatingPos),
		fxPositionEvent("apply", fx.ID, legs.fxpSource.ParticipantCurrencyID, fxpSourcePos),
	}, nil
}

// finalizeDependentFxLegs commits fx legs parked in
// RECEIVED_FULFIL_DEPENDENT once their determining transfer commits. Runs
// inside the determining transfer's fulfil transaction.
func (s *TransferService) finalizeDependentFxLegs(ctx context.Context, r *repository.Repository, determiningTransferID uuid.UUID) ([]pendingEvent, error) {
	fxTransfers, err := r.GetFxTransfersByDeterminingID(ctx, determiningTransferID)
	if err != nil {
		return nil, err
	}
	var pending []pendingEvent
	for i := range fxTransfers {
		fx := &fxTransfers[i]
		current, err := r.GetLatestFxTransferState(ctx, fx.ID)
		if err != nil {
			return nil, err
		}
		if current.State != domain.StateReceivedFulfilDependent {
			continue
		}
		legs, err := fxLegs(ctx, r, fx.ID)
		if err != nil {
			return nil, err
		}
		committed := &models.FxTransferStateChange{CommitRequestID: fx.ID, State: domain.StateCommitted, Reason: "determining transfer committed"}
		if err := r.InsertFxTransferStateChange(ctx, committed); err != nil {
			return nil, err
		}
		evts, err := commitFxPositions(ctx, r, s.positions, fx, legs, committed.ID)
		if err != nil {
			return nil, err
		}
		pending = append(pending, evts...)
		observability.IncrementStateTransition("fx_transfer", string(domain.StateCommitted))
	}
	return pending, nil
}

func fxStateEvent(action string, commitRequestID uuid.UUID, state domain.TransferState, participantCurrencyID int64) pendingEvent {
	return pendingEvent{
		topic: events.TopicTransferState,
		key:   fmt.Sprint(participantCurrencyID),
		payload: events.TransferStateEvent{
			Action:                action,
			TransferID:            commitRequestID.String(),
			NewState:              string(state),
			ParticipantCurrencyID: participantCurrencyID,
			IsFx:                  true,
			Timestamp:             time.Now().UTC(),
		},
	}
}

func fxPositionEvent(action string, commitRequestID uuid.UUID, participantCurrencyID int64, pos *models.ParticipantPosition) pendingEvent {
	return pendingEvent{
		topic: events.TopicPositionChange,
		key:   fmt.Sprint(participantCurrencyID),
		payload: events.PositionChangeEvent{
			Action:                action,
			TransferID:            commitRequestID.String(),
			ParticipantCurrencyID: participantCurrencyID,
			Value:                 domain.FormatAmount(pos.Value),
			ReservedValue:         domain.FormatAmount(pos.ReservedValue),
			Timestamp:             time.Now().UTC(),
		},
	}
}
