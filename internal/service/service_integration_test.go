package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/events"
	"github.com/kayode-ade/central-ledger/internal/lock"
	"github.com/kayode-ade/central-ledger/internal/repository"
)

// These tests run against a migrated Postgres named by DATABASE_URL and are
// skipped when it is not set.

type testEnv struct {
	pool         *pgxpool.Pool
	store        *repository.Store
	participants *ParticipantService
	transfers    *TransferService
	fxTransfers  *FxTransferService
	settlements  *SettlementService
	timeouts     *TimeoutService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		t.Skip("DATABASE_URL not set, skipping database tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE TABLE
		settlement_entry, settlement, settlement_model,
		fx_transfer_error, fx_transfer_timeout,
		fx_transfer_fulfilment_duplicate_check, fx_transfer_duplicate_check,
		fx_transfer_participant, fx_transfer_state_change, fx_transfer,
		transfer_error, transfer_timeout,
		transfer_fulfilment_duplicate_check, transfer_duplicate_check,
		transfer_participant, transfer_state_change, transfer,
		settlement_window_state_change, settlement_window,
		participant_limit, participant_position_change, participant_position,
		participant_currency, participant
		CASCADE`)
	require.NoError(t, err)

	var windowID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO settlement_window DEFAULT VALUES RETURNING id`).Scan(&windowID))
	_, err = pool.Exec(ctx,
		`INSERT INTO settlement_window_state_change (settlement_window_id, state) VALUES ($1, 'OPEN')`,
		windowID)
	require.NoError(t, err)

	store := repository.NewStore(pool)
	positions := NewPositionEngine()
	logger := zap.NewNop()
	publisher := events.Noop{}

	transfers := NewTransferService(store, positions, publisher, logger)
	fxTransfers := NewFxTransferService(store, positions, publisher, logger)
	settlements := NewSettlementService(store, positions, logger)
	return &testEnv{
		pool:         pool,
		store:        store,
		participants: NewParticipantService(store, settlements),
		transfers:    transfers,
		fxTransfers:  fxTransfers,
		settlements:  settlements,
		timeouts: NewTimeoutService(store, transfers, fxTransfers,
			lock.NewLocalManager(time.Second), 30*time.Second, publisher, logger),
	}
}

func (e *testEnv) createFsp(t *testing.T, name, currency string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.participants.CreateParticipant(ctx, CreateParticipantRequest{Name: name})
	require.NoError(t, err)
	_, err = e.participants.RegisterCurrency(ctx, name, currency)
	require.NoError(t, err)
}

func (e *testEnv) position(t *testing.T, name, currency string) (value, reserved decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	p, err := e.store.Repo().GetParticipantByName(ctx, name)
	require.NoError(t, err)
	account, err := e.store.Repo().GetParticipantAccount(ctx, p.ID, currency, domain.AccountTypePosition)
	require.NoError(t, err)
	pos, err := e.store.Repo().GetPosition(ctx, account.ID)
	require.NoError(t, err)
	return pos.Value, pos.ReservedValue
}

func preparedTransfer(payer, payee, amount string, expiry time.Duration) (PrepareTransferRequest, string) {
	condition, fulfilment := domain.MakeCondition(bytes.Repeat([]byte{0x42}, 32))
	return PrepareTransferRequest{
		TransferID: uuid.New(),
		PayerFsp:   payer,
		PayeeFsp:   payee,
		Amount:     amount,
		Currency:   "USD",
		Condition:  condition,
		Expiration: time.Now().Add(expiry),
	}, fulfilment
}

func TestTransferLifecycle(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "USD")

	req, fulfilment := preparedTransfer("dfsp-a", "dfsp-b", "100.00", time.Hour)

	result, err := env.transfers.Prepare(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReserved, result.State)

	value, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, value.IsZero())
	assert.True(t, reserved.Equal(decimal.RequireFromString("100")))

	// Identical retry is an idempotent replay.
	replay, err := env.transfers.Prepare(ctx, req)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, domain.StateReserved, replay.State)

	// Same id with a different payload is a conflict.
	modified := req
	modified.Amount = "200.00"
	_, err = env.transfers.Prepare(ctx, modified)
	assert.ErrorIs(t, err, domain.ErrModifiedRequest)

	fulfilled, err := env.transfers.Fulfil(ctx, req.TransferID, FulfilTransferRequest{Fulfilment: fulfilment})
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, fulfilled.State)

	value, reserved = env.position(t, "dfsp-a", "USD")
	assert.True(t, value.Equal(decimal.RequireFromString("-100")), "payer position is payable")
	assert.True(t, reserved.IsZero())

	value, _ = env.position(t, "dfsp-b", "USD")
	assert.True(t, value.Equal(decimal.RequireFromString("100")), "payee position is receivable")

	view, err := env.transfers.GetTransfer(ctx, req.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, view.State)
	require.NotNil(t, view.Transfer.SettlementWindowID)

	// Retrying the identical fulfil replays the committed outcome.
	again, err := env.transfers.Fulfil(ctx, req.TransferID, FulfilTransferRequest{Fulfilment: fulfilment})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, domain.StateCommitted, again.State)

	// A different fulfilment payload for the same id is a conflict.
	_, err = env.transfers.Fulfil(ctx, req.TransferID, FulfilTransferRequest{Fulfilment: fulfilment + "x"})
	assert.ErrorIs(t, err, domain.ErrModifiedRequest)
}

func TestPrepareNetDebitCapBreach(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "USD")

	_, err := env.participants.SetNetDebitCap(ctx, SetLimitRequest{
		Name: "dfsp-a", CurrencyID: "USD", Value: decimal.RequireFromString("50"),
	})
	require.NoError(t, err)

	req, _ := preparedTransfer("dfsp-a", "dfsp-b", "80.00", time.Hour)
	result, err := env.transfers.Prepare(ctx, req)
	assert.ErrorIs(t, err, domain.ErrLimitExceeded)
	require.NotNil(t, result)
	assert.Equal(t, domain.StateInvalid, result.State)

	// The breach leaves no reservation behind.
	_, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, reserved.IsZero())

	terr, err := env.store.Repo().GetTransferError(ctx, req.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorCodePayerLimitError, terr.ErrorCode)

	// Within the cap succeeds.
	small, _ := preparedTransfer("dfsp-a", "dfsp-b", "40.00", time.Hour)
	ok, err := env.transfers.Prepare(ctx, small)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReserved, ok.State)
}

func TestFulfilInvalidFulfilment(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "USD")

	req, _ := preparedTransfer("dfsp-a", "dfsp-b", "25.00", time.Hour)
	_, err := env.transfers.Prepare(ctx, req)
	require.NoError(t, err)

	_, wrongFulfilment := domain.MakeCondition(bytes.Repeat([]byte{0x99}, 32))
	result, err := env.transfers.Fulfil(ctx, req.TransferID, FulfilTransferRequest{Fulfilment: wrongFulfilment})
	assert.ErrorIs(t, err, domain.ErrInvalidFulfilment)
	assert.Equal(t, domain.StateAbortedError, result.State)

	value, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, value.IsZero())
	assert.True(t, reserved.IsZero())
}

func TestRejectReleasesReservation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "USD")

	req, _ := preparedTransfer("dfsp-a", "dfsp-b", "10.00", time.Hour)
	_, err := env.transfers.Prepare(ctx, req)
	require.NoError(t, err)

	result, err := env.transfers.Reject(ctx, req.TransferID, "payee declined")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAbortedRejected, result.State)

	_, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, reserved.IsZero())
}

func TestTimeoutSweepExpiresReserved(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "USD")

	req, fulfilment := preparedTransfer("dfsp-a", "dfsp-b", "60.00", 50*time.Millisecond)
	_, err := env.transfers.Prepare(ctx, req)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	report, err := env.timeouts.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	view, err := env.transfers.GetTransfer(ctx, req.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpiredReserved, view.State)
	require.NotNil(t, view.Error)
	assert.Equal(t, domain.ErrorCodeTransferExpired, view.Error.ErrorCode)

	_, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, reserved.IsZero())

	// Late fulfilment is refused.
	_, err = env.transfers.Fulfil(ctx, req.TransferID, FulfilTransferRequest{Fulfilment: fulfilment})
	assert.ErrorIs(t, err, domain.ErrNonReservedState)

	// A second sweep finds nothing left to do.
	report, err = env.timeouts.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Expired)
	assert.Zero(t, report.Collected)
}

func TestFxTransferDependentCommit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "EUR")
	env.createFsp(t, "fxp-1", "USD")
	_, err := env.participants.RegisterCurrency(ctx, "fxp-1", "EUR")
	require.NoError(t, err)
	_, err = env.participants.RegisterCurrency(ctx, "dfsp-a", "EUR")
	require.NoError(t, err)

	condition, fulfilment := domain.MakeCondition(bytes.Repeat([]byte{0x07}, 32))
	determiningID := uuid.New()

	fxReq := PrepareFxTransferRequest{
		CommitRequestID:       uuid.New(),
		DeterminingTransferID: determiningID,
		InitiatingFsp:         "dfsp-a",
		CounterPartyFsp:       "fxp-1",
		SourceAmount:          "100.00",
		SourceCurrency:        "USD",
		TargetAmount:          "90.00",
		TargetCurrency:        "EUR",
		Condition:             condition,
		Expiration:            time.Now().Add(time.Hour),
	}
	fxResult, err := env.fxTransfers.PrepareFx(ctx, fxReq)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReserved, fxResult.State)

	// Fulfilment before the determining transfer commits parks the leg.
	fxFulfil, err := env.fxTransfers.FulfilFx(ctx, fxReq.CommitRequestID, FulfilTransferRequest{Fulfilment: fulfilment})
	require.NoError(t, err)
	assert.Equal(t, domain.StateReceivedFulfilDependent, fxFulfil.State)

	_, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, reserved.Equal(decimal.RequireFromString("100")), "parked leg keeps its reservation")

	// The determining transfer moves the converted amount on to the payee.
	detCondition, detFulfilment := domain.MakeCondition(bytes.Repeat([]byte{0x08}, 32))
	detReq := PrepareTransferRequest{
		TransferID: determiningID,
		PayerFsp:   "fxp-1",
		PayeeFsp:   "dfsp-b",
		Amount:     "90.00",
		Currency:   "EUR",
		Condition:  detCondition,
		Expiration: time.Now().Add(time.Hour),
	}
	_, err = env.transfers.Prepare(ctx, detReq)
	require.NoError(t, err)
	committed, err := env.transfers.Fulfil(ctx, determiningID, FulfilTransferRequest{Fulfilment: detFulfilment})
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, committed.State)

	// The parked fx leg finalized with the determining transfer.
	fxView, err := env.fxTransfers.GetFxTransfer(ctx, fxReq.CommitRequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, fxView.State)

	value, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, value.Equal(decimal.RequireFromString("-100")))
	assert.True(t, reserved.IsZero())

	// The FXP is owed the source amount and owes the target amount, the
	// latter through its payer leg on the determining transfer.
	value, _ = env.position(t, "fxp-1", "USD")
	assert.True(t, value.Equal(decimal.RequireFromString("100")))
	value, _ = env.position(t, "fxp-1", "EUR")
	assert.True(t, value.Equal(decimal.RequireFromString("-90")))

	value, _ = env.position(t, "dfsp-b", "EUR")
	assert.True(t, value.Equal(decimal.RequireFromString("90")))
}

func TestFxDependentLegExpiresWithDeterminingTransfer(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "EUR")
	env.createFsp(t, "fxp-1", "USD")
	_, err := env.participants.RegisterCurrency(ctx, "fxp-1", "EUR")
	require.NoError(t, err)

	condition, fulfilment := domain.MakeCondition(bytes.Repeat([]byte{0x07}, 32))
	determiningID := uuid.New()

	fxReq := PrepareFxTransferRequest{
		CommitRequestID:       uuid.New(),
		DeterminingTransferID: determiningID,
		InitiatingFsp:         "dfsp-a",
		CounterPartyFsp:       "fxp-1",
		SourceAmount:          "100.00",
		SourceCurrency:        "USD",
		TargetAmount:          "90.00",
		TargetCurrency:        "EUR",
		Condition:             condition,
		Expiration:            time.Now().Add(300 * time.Millisecond),
	}
	_, err = env.fxTransfers.PrepareFx(ctx, fxReq)
	require.NoError(t, err)

	fxFulfil, err := env.fxTransfers.FulfilFx(ctx, fxReq.CommitRequestID, FulfilTransferRequest{Fulfilment: fulfilment})
	require.NoError(t, err)
	require.Equal(t, domain.StateReceivedFulfilDependent, fxFulfil.State)

	// The determining transfer never arrives; the parked leg sits on its
	// reservation until the sweeper reclaims it.
	time.Sleep(400 * time.Millisecond)

	report, err := env.timeouts.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FxExpired)

	fxView, err := env.fxTransfers.GetFxTransfer(ctx, fxReq.CommitRequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpiredReserved, fxView.State)

	_, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, reserved.IsZero(), "expired leg releases its hold")

	// The work-queue row is gone: a second sweep finds nothing.
	report, err = env.timeouts.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.FxExpired)
	assert.Zero(t, report.Collected)

	// A determining transfer that commits after the expiry does not
	// resurrect the leg.
	detCondition, detFulfilment := domain.MakeCondition(bytes.Repeat([]byte{0x08}, 32))
	detReq := PrepareTransferRequest{
		TransferID: determiningID,
		PayerFsp:   "fxp-1",
		PayeeFsp:   "dfsp-b",
		Amount:     "90.00",
		Currency:   "EUR",
		Condition:  detCondition,
		Expiration: time.Now().Add(time.Hour),
	}
	_, err = env.transfers.Prepare(ctx, detReq)
	require.NoError(t, err)
	committed, err := env.transfers.Fulfil(ctx, determiningID, FulfilTransferRequest{Fulfilment: detFulfilment})
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, committed.State)

	fxView, err = env.fxTransfers.GetFxTransfer(ctx, fxReq.CommitRequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpiredReserved, fxView.State)

	value, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, value.IsZero(), "expired leg never commits")
	assert.True(t, reserved.IsZero())
}

func TestSettlementWindowFlow(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.settlements.CreateSettlementModel(ctx, CreateSettlementModelRequest{
		Name:                  "DEFERREDNET-USD",
		Granularity:           domain.GranularityNet,
		Interchange:           domain.InterchangeMultilateral,
		Delay:                 domain.DelayDeferred,
		CurrencyID:            strPtr("USD"),
		RequireLiquidityCheck: true,
		LedgerAccountType:     domain.AccountTypePosition,
		SettlementAccountType: domain.AccountTypeSettlement,
	})
	require.NoError(t, err)

	// Duplicate name is refused.
	_, err = env.settlements.CreateSettlementModel(ctx, CreateSettlementModelRequest{
		Name:                  "DEFERREDNET-USD",
		Granularity:           domain.GranularityNet,
		Interchange:           domain.InterchangeMultilateral,
		Delay:                 domain.DelayDeferred,
		LedgerAccountType:     domain.AccountTypePosition,
		SettlementAccountType: domain.AccountTypeSettlement,
	})
	assert.ErrorIs(t, err, domain.ErrSettlementModelExists)

	// Unsupported tuple is refused.
	_, err = env.settlements.CreateSettlementModel(ctx, CreateSettlementModelRequest{
		Name:                  "BROKEN",
		Granularity:           domain.GranularityGross,
		Interchange:           domain.InterchangeMultilateral,
		Delay:                 domain.DelayImmediate,
		LedgerAccountType:     domain.AccountTypePosition,
		SettlementAccountType: domain.AccountTypeSettlement,
	})
	assert.ErrorIs(t, err, domain.ErrSettlementModelInvalid)

	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "USD")

	// Registering against the model provisions the settlement account too.
	accounts, err := env.participants.ListAccounts(ctx, "dfsp-a")
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// An empty window cannot close.
	_, err = env.settlements.CloseWindow(ctx, "nothing to settle")
	assert.ErrorIs(t, err, domain.ErrValidation)

	req, fulfilment := preparedTransfer("dfsp-a", "dfsp-b", "100.00", time.Hour)
	_, err = env.transfers.Prepare(ctx, req)
	require.NoError(t, err)
	_, err = env.transfers.Fulfil(ctx, req.TransferID, FulfilTransferRequest{Fulfilment: fulfilment})
	require.NoError(t, err)

	closed, err := env.settlements.CloseWindow(ctx, "end of day")
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed.TransferCount)
	assert.NotEqual(t, closed.ClosedWindowID, closed.OpenWindowID)

	// Settling an OPEN window is refused.
	_, err = env.settlements.SettleWindow(ctx, closed.OpenWindowID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	report, err := env.settlements.SettleWindow(ctx, closed.ClosedWindowID)
	require.NoError(t, err)
	require.Len(t, report.Settlements, 1)
	require.Len(t, report.Settlements[0].Entries, 2)

	state, err := env.settlements.WindowState(ctx, closed.ClosedWindowID)
	require.NoError(t, err)
	assert.Equal(t, domain.WindowSettled, state)

	// Settling twice is refused.
	_, err = env.settlements.SettleWindow(ctx, closed.ClosedWindowID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestConcurrentPreparesHonorCap(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "USD")

	_, err := env.participants.SetNetDebitCap(ctx, SetLimitRequest{
		Name: "dfsp-a", CurrencyID: "USD", Value: decimal.RequireFromString("100"),
	})
	require.NoError(t, err)

	const workers = 10
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			req, _ := preparedTransfer("dfsp-a", "dfsp-b", "30.00", time.Hour)
			_, err := env.transfers.Prepare(ctx, req)
			errs <- err
		}()
	}

	accepted := 0
	for i := 0; i < workers; i++ {
		err := <-errs
		if err == nil {
			accepted++
		} else {
			require.ErrorIs(t, err, domain.ErrLimitExceeded)
		}
	}
	// 100 cap, 30 each: exactly three reservations fit.
	assert.Equal(t, 3, accepted, fmt.Sprintf("accepted %d prepares", accepted))

	_, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, reserved.Equal(decimal.RequireFromString("90")))
}

func TestOpposingFulfilsDoNotDeadlock(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.createFsp(t, "dfsp-a", "USD")
	env.createFsp(t, "dfsp-b", "USD")

	// Many rounds of transfers in both directions between the same pair.
	// Fulfilling them concurrently locks both parties' position rows in
	// every transaction; without a fixed acquisition order the two
	// directions deadlock against each other.
	const rounds = 5
	type leg struct {
		id         uuid.UUID
		fulfilment string
	}
	var legs []leg
	for i := 0; i < rounds; i++ {
		aToB, fa := preparedTransfer("dfsp-a", "dfsp-b", "10.00", time.Hour)
		bToA, fb := preparedTransfer("dfsp-b", "dfsp-a", "10.00", time.Hour)
		_, err := env.transfers.Prepare(ctx, aToB)
		require.NoError(t, err)
		_, err = env.transfers.Prepare(ctx, bToA)
		require.NoError(t, err)
		legs = append(legs, leg{aToB.TransferID, fa}, leg{bToA.TransferID, fb})
	}

	errs := make(chan error, len(legs))
	for _, l := range legs {
		go func(l leg) {
			_, err := env.transfers.Fulfil(ctx, l.id, FulfilTransferRequest{Fulfilment: l.fulfilment})
			errs <- err
		}(l)
	}
	for range legs {
		require.NoError(t, <-errs)
	}

	// Equal traffic both ways nets out to zero.
	value, reserved := env.position(t, "dfsp-a", "USD")
	assert.True(t, value.IsZero())
	assert.True(t, reserved.IsZero())
	value, reserved = env.position(t, "dfsp-b", "USD")
	assert.True(t, value.IsZero())
	assert.True(t, reserved.IsZero())
}

func TestRegisterCurrencySeesNewModel(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// First registration resolves no model for USD and caches the miss.
	env.createFsp(t, "dfsp-a", "USD")
	accounts, err := env.participants.ListAccounts(ctx, "dfsp-a")
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	_, err = env.settlements.CreateSettlementModel(ctx, CreateSettlementModelRequest{
		Name:                  "DEFERREDNET-USD",
		Granularity:           domain.GranularityNet,
		Interchange:           domain.InterchangeMultilateral,
		Delay:                 domain.DelayDeferred,
		CurrencyID:            strPtr("USD"),
		RequireLiquidityCheck: true,
		LedgerAccountType:     domain.AccountTypePosition,
		SettlementAccountType: domain.AccountTypeSettlement,
	})
	require.NoError(t, err)

	// Creating the model invalidates the cached miss: the next registration
	// must provision the settlement account as well.
	env.createFsp(t, "dfsp-b", "USD")
	accounts, err = env.participants.ListAccounts(ctx, "dfsp-b")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
}

func strPtr(s string) *string { return &s }
