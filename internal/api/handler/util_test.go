package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayode-ade/central-ledger/internal/api/problem"
	"github.com/kayode-ade/central-ledger/internal/domain"
)

func TestDomainStatus(t *testing.T) {
	tests := []struct {
		err         error
		status      int
		problemType string
	}{
		{domain.ErrTransferNotFound, http.StatusNotFound, "ledger/not-found"},
		{domain.ErrParticipantNotFound, http.StatusNotFound, "ledger/not-found"},
		{domain.ErrParticipantExists, http.StatusConflict, "ledger/already-exists"},
		{domain.ErrModifiedRequest, http.StatusConflict, "ledger/modified-request"},
		{domain.ErrNonReservedState, http.StatusConflict, "ledger/invalid-state"},
		{domain.ErrLimitExceeded, http.StatusUnprocessableEntity, "ledger/net-debit-cap"},
		{domain.ErrInvalidFulfilment, http.StatusUnprocessableEntity, "ledger/invalid-fulfilment"},
		{domain.ErrTransferExpired, http.StatusUnprocessableEntity, "ledger/transfer-expired"},
		{domain.ErrValidation, http.StatusBadRequest, "ledger/validation"},
		{domain.ErrSettlementModelInvalid, http.StatusBadRequest, "ledger/validation"},
		{fmt.Errorf("wrapped: %w", domain.ErrLimitExceeded), http.StatusUnprocessableEntity, "ledger/net-debit-cap"},
		{&pgconn.PgError{Code: "23505"}, http.StatusConflict, "db/unique-violation"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal-server-error"},
	}
	for _, tt := range tests {
		t.Run(tt.problemType+"/"+tt.err.Error(), func(t *testing.T) {
			status, problemType := domainStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.problemType, problemType)
		})
	}
}

func TestRespondDomainErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/transfers", nil)
	req.Header.Set("X-Trace-ID", "trace-123")

	RespondDomainError(rec, req, fmt.Errorf("transfer abc: %w", domain.ErrLimitExceeded))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body problem.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, problem.Type("ledger/net-debit-cap"), body.Type)
	assert.Equal(t, http.StatusUnprocessableEntity, body.Status)
	assert.Equal(t, domain.ErrorCodePayerLimitError, body.ErrorCode)
	assert.Equal(t, "/v1/transfers", body.Instance)
	assert.Equal(t, "trace-123", body.RequestID)
	assert.Contains(t, body.Detail, "transfer abc")
}

func TestRespondErrorOmitsErrorCode(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/participants", nil)

	RespondError(rec, req, http.StatusBadRequest, "ledger/invalid-body", "invalid request body")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "error_code")
}
