package domain

// TransferState is the internal lifecycle state of a transfer or fx-transfer.
// Current state is always the latest row of the state-change log, never a
// mutable column.
type TransferState string

const (
	StateReceivedPrepare         TransferState = "RECEIVED_PREPARE"
	StateReserved                TransferState = "RESERVED"
	StateReceivedFulfil          TransferState = "RECEIVED_FULFIL"
	StateReceivedFulfilDependent TransferState = "RECEIVED_FULFIL_DEPENDENT"
	StateCommitted               TransferState = "COMMITTED"
	StateReceivedReject          TransferState = "RECEIVED_REJECT"
	StateReceivedError           TransferState = "RECEIVED_ERROR"
	StateAbortedRejected         TransferState = "ABORTED_REJECTED"
	StateAbortedError            TransferState = "ABORTED_ERROR"
	StateExpiredPrepared         TransferState = "EXPIRED_PREPARED"
	StateExpiredReserved         TransferState = "EXPIRED_RESERVED"
	StateReservedTimeout         TransferState = "RESERVED_TIMEOUT"
	StateFailed                  TransferState = "FAILED"
	StateInvalid                 TransferState = "INVALID"
)

var transferTransitions = map[TransferState]map[TransferState]struct{}{
	StateReceivedPrepare: {
		StateReserved:        {},
		StateInvalid:         {},
		StateExpiredPrepared: {},
	},
	StateReserved: {
		StateReceivedFulfil:          {},
		StateReceivedFulfilDependent: {},
		StateReceivedReject:          {},
		StateReceivedError:           {},
		StateReservedTimeout:         {},
		StateExpiredReserved:         {},
	},
	StateReceivedFulfil: {
		StateCommitted:    {},
		StateAbortedError: {},
	},
	StateReceivedFulfilDependent: {
		StateCommitted:       {},
		StateAbortedError:    {},
		StateExpiredReserved: {},
	},
	StateReceivedReject: {
		StateAbortedRejected: {},
	},
	StateReceivedError: {
		StateAbortedError: {},
	},
	StateReservedTimeout: {
		StateExpiredReserved: {},
	},
	// Terminal states.
	StateCommitted:       {},
	StateAbortedRejected: {},
	StateAbortedError:    {},
	StateExpiredPrepared: {},
	StateExpiredReserved: {},
	StateFailed:          {},
	StateInvalid:         {},
}

// CanTransition reports whether the state machine allows current -> next.
func CanTransition(current, next TransferState) bool {
	nextStates, ok := transferTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// IsTerminal reports whether no further transitions are possible from state.
func (s TransferState) IsTerminal() bool {
	nextStates, ok := transferTransitions[s]
	return ok && len(nextStates) == 0
}

// IsTimeoutHandled reports whether the timeout sweeper should garbage-collect
// the timeout row for a transfer in this state instead of expiring it.
func (s TransferState) IsTimeoutHandled() bool {
	switch s {
	case StateCommitted, StateFailed, StateReservedTimeout,
		StateAbortedRejected, StateAbortedError,
		StateExpiredPrepared, StateExpiredReserved, StateInvalid:
		return true
	}
	return false
}

// LedgerAccountType classifies the purpose of a participant currency account.
type LedgerAccountType string

const (
	AccountTypePosition                  LedgerAccountType = "POSITION"
	AccountTypeSettlement                LedgerAccountType = "SETTLEMENT"
	AccountTypeHubReconciliation         LedgerAccountType = "HUB_RECONCILIATION"
	AccountTypeHubMultilateralSettlement LedgerAccountType = "HUB_MULTILATERAL_SETTLEMENT"
	AccountTypeInterchangeFee            LedgerAccountType = "INTERCHANGE_FEE"
)

// LimitType names a participant limit. NET_DEBIT_CAP is the only type the
// position engine enforces today.
type LimitType string

const LimitTypeNetDebitCap LimitType = "NET_DEBIT_CAP"

// ParticipantRole identifies the side a participant row plays on a transfer.
type ParticipantRole string

const (
	RoleInitiatingFSP   ParticipantRole = "INITIATING_FSP"
	RoleCounterPartyFSP ParticipantRole = "COUNTER_PARTY_FSP"
)

// FxCurrencyType discriminates the two currency legs of an fx-transfer.
type FxCurrencyType string

const (
	FxCurrencySource FxCurrencyType = "SOURCE"
	FxCurrencyTarget FxCurrencyType = "TARGET"
)
