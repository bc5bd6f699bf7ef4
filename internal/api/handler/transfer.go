package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kayode-ade/central-ledger/internal/service"
)

type TransferHandler struct {
	svc *service.TransferService
}

func NewTransferHandler(svc *service.TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Prepare accepts a transfer prepare. A replay of an identical request
// returns the current state with 200 instead of 202.
func (h *TransferHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	var req service.PrepareTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Prepare(r.Context(), req)
	if err != nil {
		// A net-debit-cap breach still records the INVALID state before
		// surfacing here.
		RespondDomainError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if result.Replayed {
		status = http.StatusOK
	}
	RespondJSON(w, status, result)
}

func (h *TransferHandler) Fulfil(w http.ResponseWriter, r *http.Request) {
	transferID, ok := parseTransferID(w, r)
	if !ok {
		return
	}
	var req service.FulfilTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Fulfil(r.Context(), transferID, req)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *TransferHandler) Reject(w http.ResponseWriter, r *http.Request) {
	transferID, ok := parseTransferID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Reject(r.Context(), transferID, req.Reason)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *TransferHandler) AbortWithError(w http.ResponseWriter, r *http.Request) {
	transferID, ok := parseTransferID(w, r)
	if !ok {
		return
	}
	var req struct {
		ErrorCode   string `json:"error_code"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.AbortWithError(r.Context(), transferID, req.ErrorCode, req.Description)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	transferID, ok := parseTransferID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.GetTransfer(r.Context(), transferID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

func parseTransferID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "ledger/invalid-id", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
