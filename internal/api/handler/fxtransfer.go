package handler

import (
	"net/http"

	"github.com/kayode-ade/central-ledger/internal/service"
)

type FxTransferHandler struct {
	svc *service.FxTransferService
}

func NewFxTransferHandler(svc *service.FxTransferService) *FxTransferHandler {
	return &FxTransferHandler{svc: svc}
}

func (h *FxTransferHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	var req service.PrepareFxTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.PrepareFx(r.Context(), req)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if result.Replayed {
		status = http.StatusOK
	}
	RespondJSON(w, status, result)
}

func (h *FxTransferHandler) Fulfil(w http.ResponseWriter, r *http.Request) {
	commitRequestID, ok := parseTransferID(w, r)
	if !ok {
		return
	}
	var req service.FulfilTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.FulfilFx(r.Context(), commitRequestID, req)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *FxTransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	commitRequestID, ok := parseTransferID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.GetFxTransfer(r.Context(), commitRequestID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}
