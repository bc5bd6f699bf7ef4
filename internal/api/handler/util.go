package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kayode-ade/central-ledger/internal/api/problem"
	"github.com/kayode-ade/central-ledger/internal/domain"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an RFC 7807 error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondDomainError maps a service error onto the right status, problem
// type and scheme error code.
func RespondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, problemType := domainStatus(err)
	problem.WriteCode(w, r, status, problem.Type(problemType), http.StatusText(status), err.Error(), domain.ErrorCodeFor(err))
}

func domainStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransferNotFound),
		errors.Is(err, domain.ErrLimitNotFound):
		return http.StatusNotFound, "ledger/not-found"
	case errors.Is(err, domain.ErrParticipantExists),
		errors.Is(err, domain.ErrCurrencyAlreadyRegistered),
		errors.Is(err, domain.ErrSettlementModelExists):
		return http.StatusConflict, "ledger/already-exists"
	case errors.Is(err, domain.ErrModifiedRequest):
		return http.StatusConflict, "ledger/modified-request"
	case errors.Is(err, domain.ErrLimitExceeded):
		return http.StatusUnprocessableEntity, "ledger/net-debit-cap"
	case errors.Is(err, domain.ErrInvalidFulfilment):
		return http.StatusUnprocessableEntity, "ledger/invalid-fulfilment"
	case errors.Is(err, domain.ErrTransferExpired):
		return http.StatusUnprocessableEntity, "ledger/transfer-expired"
	case errors.Is(err, domain.ErrNonReservedState),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "ledger/invalid-state"
	case errors.Is(err, domain.ErrParticipantInactive),
		errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSettlementModelInvalid),
		errors.Is(err, domain.ErrLedgerAccountTypeNotFound),
		errors.Is(err, domain.ErrCurrencyNotSupported):
		return http.StatusBadRequest, "ledger/validation"
	default:
		if status, problemType, ok := mapDBError(err); ok {
			return status, problemType
		}
		return http.StatusInternalServerError, "internal-server-error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "ledger/invalid-body", "invalid request body")
		return false
	}
	return true
}

func mapDBError(err error) (status int, problemType string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", true
	default:
		return 0, "", false
	}
}
