package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kayode-ade/central-ledger/internal/service"
)

type ParticipantHandler struct {
	svc *service.ParticipantService
}

func NewParticipantHandler(svc *service.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{svc: svc}
}

func (h *ParticipantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		IsProxy bool   `json:"is_proxy"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateParticipant(r.Context(), service.CreateParticipantRequest{Name: req.Name, IsProxy: req.IsProxy})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, p)
}

func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetParticipant(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, p)
}

func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	participants, err := h.svc.ListParticipants(r.Context())
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, participants)
}

func (h *ParticipantHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetParticipantActive(r.Context(), chi.URLParam(r, "name"), req.IsActive); err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"is_active": req.IsActive})
}

func (h *ParticipantHandler) SetAccountActive(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseInt64Param(w, r, "accountID")
	if !ok {
		return
	}
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetAccountActive(r.Context(), chi.URLParam(r, "name"), accountID, req.IsActive); err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"is_active": req.IsActive})
}

func (h *ParticipantHandler) RegisterCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	accounts, err := h.svc.RegisterCurrency(r.Context(), chi.URLParam(r, "name"), req.Currency)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, accounts)
}

func (h *ParticipantHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.ListAccounts(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, accounts)
}

func (h *ParticipantHandler) SetLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency                 string          `json:"currency"`
		Value                    decimal.Decimal `json:"value"`
		ThresholdAlarmPercentage decimal.Decimal `json:"threshold_alarm_percentage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	limit, err := h.svc.SetNetDebitCap(r.Context(), service.SetLimitRequest{
		Name:                     chi.URLParam(r, "name"),
		CurrencyID:               req.Currency,
		Value:                    req.Value,
		ThresholdAlarmPercentage: req.ThresholdAlarmPercentage,
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, limit)
}

func (h *ParticipantHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.GetPositions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, positions)
}
