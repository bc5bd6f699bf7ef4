package domain

import "errors"

// Sentinel errors for the ledger error taxonomy. Handlers map these onto
// problem+json responses; mid-lifecycle protocol errors additionally produce
// a transfer_error row.
var (
	// Validation errors: rejected before any state is created.
	ErrValidation           = errors.New("validation error")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrParticipantInactive  = errors.New("participant is inactive")
	ErrAccountNotFound      = errors.New("participant currency account not found")
	ErrAccountInactive      = errors.New("participant currency account is inactive")
	ErrCurrencyNotSupported = errors.New("currency not supported")

	// Business-rule errors.
	ErrLimitExceeded             = errors.New("net debit cap exceeded")
	ErrCurrencyAlreadyRegistered = errors.New("currency already registered for participant")
	ErrSettlementModelExists     = errors.New("settlement model already exists")
	ErrSettlementModelInvalid    = errors.New("unsupported settlement model combination")
	ErrLedgerAccountTypeNotFound = errors.New("ledger account type not found")
	ErrParticipantExists         = errors.New("participant already exists")
	ErrLimitNotFound             = errors.New("participant limit not found")

	// Protocol errors: recorded as transfer_error and drive an abort/expire.
	ErrInvalidFulfilment = errors.New("fulfilment does not match condition")
	ErrTransferExpired   = errors.New("transfer expired")
	ErrNonReservedState  = errors.New("transfer is not in a reserved state")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrInvalidTransition = errors.New("invalid state transition")

	// Duplicate-request outcomes. ErrDuplicateRequest is an idempotent
	// replay signal, ErrModifiedRequest a genuine conflict.
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrModifiedRequest  = errors.New("request id already used with a different payload")
)

// FSPIOP-style numeric error codes persisted on transfer_error rows.
const (
	ErrorCodeInternal          = "2001"
	ErrorCodeModifiedRequest   = "3106"
	ErrorCodeTransferExpired   = "3303"
	ErrorCodeInvalidFulfilment = "3201"
	ErrorCodePayerLimitError   = "4001"
	ErrorCodeGenericValidation = "3100"
	ErrorCodeInvalidState      = "3300"
)

// ErrorCodeFor maps a protocol/business error onto its wire error code.
func ErrorCodeFor(err error) string {
	switch {
	case errors.Is(err, ErrLimitExceeded):
		return ErrorCodePayerLimitError
	case errors.Is(err, ErrInvalidFulfilment):
		return ErrorCodeInvalidFulfilment
	case errors.Is(err, ErrTransferExpired):
		return ErrorCodeTransferExpired
	case errors.Is(err, ErrNonReservedState), errors.Is(err, ErrInvalidTransition):
		return ErrorCodeInvalidState
	case errors.Is(err, ErrModifiedRequest):
		return ErrorCodeModifiedRequest
	case errors.Is(err, ErrValidation):
		return ErrorCodeGenericValidation
	default:
		return ErrorCodeInternal
	}
}
