package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kayode-ade/central-ledger/internal/service"
)

type SettlementHandler struct {
	svc *service.SettlementService
}

func NewSettlementHandler(svc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

func (h *SettlementHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSettlementModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	model, err := h.svc.CreateSettlementModel(r.Context(), req)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, model)
}

func (h *SettlementHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels(r.Context())
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, models)
}

func (h *SettlementHandler) SetModelFlags(w http.ResponseWriter, r *http.Request) {
	modelID, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		IsActive          bool `json:"is_active"`
		AutoPositionReset bool `json:"auto_position_reset"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetModelFlags(r.Context(), modelID, req.IsActive, req.AutoPositionReset); err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, req)
}

func (h *SettlementHandler) CloseWindow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CloseWindow(r.Context(), req.Reason)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *SettlementHandler) GetWindowState(w http.ResponseWriter, r *http.Request) {
	windowID, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}
	state, err := h.svc.WindowState(r.Context(), windowID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"window_id": windowID, "state": state})
}

func (h *SettlementHandler) SettleWindow(w http.ResponseWriter, r *http.Request) {
	windowID, ok := parseInt64Param(w, r, "id")
	if !ok {
		return
	}
	report, err := h.svc.SettleWindow(r.Context(), windowID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

func parseInt64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		RespondError(w, r, http.StatusBadRequest, "ledger/invalid-id", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
