package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/lookup"
	"github.com/kayode-ade/central-ledger/internal/models"
	"github.com/kayode-ade/central-ledger/internal/repository"
)

// SettlementService owns settlement models, window lifecycle and settlement
// execution. Model lookups go through a cache-aside table since models change
// rarely and are read on every currency registration and settlement run.
type SettlementService struct {
	store     QueryStore
	positions *PositionEngine
	models    *lookup.Table[string, *models.SettlementModel]
	logger    *zap.Logger
}

func NewSettlementService(store QueryStore, positions *PositionEngine, logger *zap.Logger) *SettlementService {
	s := &SettlementService{
		store:     store,
		positions: positions,
		logger:    logger,
	}
	s.models = lookup.New(func(ctx context.Context, currencyID string) (*models.SettlementModel, error) {
		return store.Repo().GetSettlementModelForCurrency(ctx, currencyID)
	})
	return s
}

var ledgerAccountTypes = map[domain.LedgerAccountType]struct{}{
	domain.AccountTypePosition:                  {},
	domain.AccountTypeSettlement:                {},
	domain.AccountTypeHubReconciliation:         {},
	domain.AccountTypeHubMultilateralSettlement: {},
	domain.AccountTypeInterchangeFee:            {},
}

type CreateSettlementModelRequest struct {
	Name                  string                       `json:"name"`
	Granularity           domain.SettlementGranularity `json:"settlement_granularity"`
	Interchange           domain.SettlementInterchange `json:"settlement_interchange"`
	Delay                 domain.SettlementDelay       `json:"settlement_delay"`
	CurrencyID            *string                      `json:"currency_id,omitempty"`
	RequireLiquidityCheck bool                         `json:"require_liquidity_check"`
	LedgerAccountType     domain.LedgerAccountType     `json:"ledger_account_type"`
	SettlementAccountType domain.LedgerAccountType     `json:"settlement_account_type"`
	AutoPositionReset     bool                         `json:"auto_position_reset"`
}

// CreateSettlementModel records a model and backfills the model's settlement
// account for every existing participant that already holds the currency but
// lacks the account, all in one transaction.
func (s *SettlementService) CreateSettlementModel(ctx context.Context, req CreateSettlementModelRequest) (*models.SettlementModel, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: settlement model name is required", domain.ErrValidation)
	}
	if !domain.ValidSettlementModel(req.Granularity, req.Interchange, req.Delay) {
		return nil, fmt.Errorf("%w: %s/%s/%s", domain.ErrSettlementModelInvalid, req.Granularity, req.Interchange, req.Delay)
	}
	if _, ok := ledgerAccountTypes[req.LedgerAccountType]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrLedgerAccountTypeNotFound, req.LedgerAccountType)
	}
	if _, ok := ledgerAccountTypes[req.SettlementAccountType]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrLedgerAccountTypeNotFound, req.SettlementAccountType)
	}
	var currencyID *string
	if req.CurrencyID != nil {
		c := strings.ToUpper(strings.TrimSpace(*req.CurrencyID))
		if len(c) != 3 {
			return nil, fmt.Errorf("%w: currency must be a 3-letter ISO code", domain.ErrValidation)
		}
		currencyID = &c
	}

	model := &models.SettlementModel{
		Name:                  name,
		Granularity:           req.Granularity,
		Interchange:           req.Interchange,
		Delay:                 req.Delay,
		CurrencyID:            currencyID,
		RequireLiquidityCheck: req.RequireLiquidityCheck,
		LedgerAccountType:     req.LedgerAccountType,
		SettlementAccountType: req.SettlementAccountType,
		AutoPositionReset:     req.AutoPositionReset,
		IsActive:              true,
	}
	err := s.store.RunInTx(ctx, func(r *repository.Repository) error {
		if err := r.CreateSettlementModel(ctx, model); err != nil {
			return err
		}
		if currencyID == nil || model.SettlementAccountType == domain.AccountTypePosition {
			return nil
		}
		participantIDs, err := r.ListParticipantsWithoutAccountType(ctx, *currencyID, model.SettlementAccountType)
		if err != nil {
			return err
		}
		for _, pid := range participantIDs {
			a := models.ParticipantCurrencyAccount{
				ParticipantID:     pid,
				CurrencyID:        *currencyID,
				LedgerAccountType: model.SettlementAccountType,
				IsActive:          true,
			}
			if err := r.CreateParticipantCurrencyAccount(ctx, &a); err != nil {
				return err
			}
			if err := r.CreateParticipantPosition(ctx, a.ID); err != nil {
				return err
			}
		}
		if len(participantIDs) > 0 {
			s.logger.Info("backfilled settlement accounts",
				zap.String("model", model.Name),
				zap.String("currency", *currencyID),
				zap.Int("participants", len(participantIDs)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.models.Reset()
	return model, nil
}

func (s *SettlementService) ListModels(ctx context.Context) ([]models.SettlementModel, error) {
	return s.store.Repo().ListSettlementModels(ctx)
}

func (s *SettlementService) SetModelFlags(ctx context.Context, modelID int64, isActive, autoPositionReset bool) error {
	if err := s.store.Repo().SetSettlementModelFlags(ctx, modelID, isActive, autoPositionReset); err != nil {
		return err
	}
	s.models.Reset()
	return nil
}

// ModelForCurrency resolves the active model for a currency through the
// cache, falling back to the scheme default. Returns nil when no model is
// configured at all.
func (s *SettlementService) ModelForCurrency(ctx context.Context, currencyID string) (*models.SettlementModel, error) {
	return s.models.Get(ctx, strings.ToUpper(currencyID))
}

// CloseWindowResult reports the closed window and its freshly opened
// successor.
type CloseWindowResult struct {
	ClosedWindowID int64 `json:"closed_window_id"`
	OpenWindowID   int64 `json:"open_window_id"`
	TransferCount  int64 `json:"transfer_count"`
}

// CloseWindow closes the current OPEN window and opens the next one, so
// there is always exactly one OPEN window. A window with no transfers cannot
// be closed.
func (s *SettlementService) CloseWindow(ctx context.Context, reason string) (*CloseWindowResult, error) {
	var result CloseWindowResult
	err := s.store.RunInTx(ctx, func(r *repository.Repository) error {
		w, err := r.GetOpenWindowForUpdate(ctx)
		if err != nil {
			return err
		}
		n, err := r.CountWindowTransfers(ctx, w.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: window %d has no transfers to settle", domain.ErrValidation, w.ID)
		}
		if err := r.InsertWindowStateChange(ctx, w.ID, domain.WindowClosed, reason); err != nil {
			return err
		}
		next, err := r.CreateSettlementWindow(ctx, "opened on close of window "+fmt.Sprint(w.ID))
		if err != nil {
			return err
		}
		result = CloseWindowResult{ClosedWindowID: w.ID, OpenWindowID: next.ID, TransferCount: n}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("settlement window closed",
		zap.Int64("window_id", result.ClosedWindowID),
		zap.Int64("next_window_id", result.OpenWindowID),
		zap.Int64("transfers", result.TransferCount))
	return &result, nil
}

func (s *SettlementService) WindowState(ctx context.Context, windowID int64) (domain.SettlementWindowState, error) {
	return s.store.Repo().GetWindowState(ctx, windowID)
}

// SettlementSummary describes one settlement produced for a window, one per
// settlement model that matched the window's currencies.
type SettlementSummary struct {
	SettlementID int64                    `json:"settlement_id"`
	ModelID      int64                    `json:"model_id"`
	ModelName    string                   `json:"model_name"`
	CurrencyID   string                   `json:"currency_id"`
	Entries      []models.SettlementEntry `json:"entries"`
}

type SettlementReport struct {
	WindowID    int64               `json:"window_id"`
	Settlements []SettlementSummary `json:"settlements"`
}

// SettleWindow executes settlement for a CLOSED window: the window moves to
// PENDING_SETTLEMENT, entries are computed per currency according to that
// currency's model, positions are reset where the model asks for it, and the
// window lands in SETTLED. The whole run is one transaction.
func (s *SettlementService) SettleWindow(ctx context.Context, windowID int64) (*SettlementReport, error) {
	report := &SettlementReport{WindowID: windowID}
	err := s.store.RunInTx(ctx, func(r *repository.Repository) error {
		state, err := r.GetWindowState(ctx, windowID)
		if err != nil {
			return err
		}
		if state != domain.WindowClosed {
			return fmt.Errorf("%w: window %d is %s, expected CLOSED", domain.ErrValidation, windowID, state)
		}
		if err := r.InsertWindowStateChange(ctx, windowID, domain.WindowPendingSettlement, ""); err != nil {
			return err
		}

		legs, err := r.ListCommittedWindowLegs(ctx, windowID)
		if err != nil {
			return err
		}
		byCurrency := map[string][]repository.SettlementLeg{}
		for _, l := range legs {
			byCurrency[l.CurrencyID] = append(byCurrency[l.CurrencyID], l)
		}
		currencies := make([]string, 0, len(byCurrency))
		for c := range byCurrency {
			currencies = append(currencies, c)
		}
		sort.Strings(currencies)

		for _, currency := range currencies {
			model, err := r.GetSettlementModelForCurrency(ctx, currency)
			if err != nil {
				return err
			}
			if model == nil {
				return fmt.Errorf("%w: no settlement model for currency %s", domain.ErrValidation, currency)
			}

			settlement := &models.Settlement{SettlementWindowID: windowID, SettlementModelID: model.ID}
			if err := r.CreateSettlement(ctx, settlement); err != nil {
				return err
			}

			var entries []models.SettlementEntry
			switch {
			case model.Granularity == domain.GranularityGross:
				entries = buildGrossEntries(byCurrency[currency])
			case model.Interchange == domain.InterchangeBilateral:
				entries = buildBilateralNetEntries(byCurrency[currency])
			default:
				entries = buildMultilateralNetEntries(byCurrency[currency])
			}
			for i := range entries {
				entries[i].SettlementID = settlement.ID
				if err := r.InsertSettlementEntry(ctx, &entries[i]); err != nil {
					return err
				}
			}

			if model.AutoPositionReset {
				accountIDs, err := r.ListAutoResetAccounts(ctx, model.ID)
				if err != nil {
					return err
				}
				for _, id := range accountIDs {
					// Settlement resets carry no transfer state change;
					// the audit row records 0.
					if _, err := s.positions.Reset(ctx, r, id, 0); err != nil {
						return err
					}
				}
			}

			report.Settlements = append(report.Settlements, SettlementSummary{
				SettlementID: settlement.ID,
				ModelID:      model.ID,
				ModelName:    model.Name,
				CurrencyID:   currency,
				Entries:      entries,
			})
		}

		return r.InsertWindowStateChange(ctx, windowID, domain.WindowSettled, "")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("settlement window settled",
		zap.Int64("window_id", windowID),
		zap.Int("settlements", len(report.Settlements)))
	return report, nil
}

// transferSides pairs the two legs of one transfer.
type transferSides struct {
	payer repository.SettlementLeg
	payee repository.SettlementLeg
}

func pairLegs(legs []repository.SettlementLeg) []transferSides {
	byTransfer := map[uuid.UUID]*transferSides{}
	var order []uuid.UUID
	for _, l := range legs {
		p, ok := byTransfer[l.TransferID]
		if !ok {
			p = &transferSides{}
			byTransfer[l.TransferID] = p
			order = append(order, l.TransferID)
		}
		if l.Role == domain.RoleInitiatingFSP {
			p.payer = l
		} else {
			p.payee = l
		}
	}
	out := make([]transferSides, 0, len(order))
	for _, id := range order {
		out = append(out, *byTransfer[id])
	}
	return out
}

// buildGrossEntries emits one entry per transfer: the payer account owes the
// full amount to the payee account.
func buildGrossEntries(legs []repository.SettlementLeg) []models.SettlementEntry {
	var out []models.SettlementEntry
	for _, p := range pairLegs(legs) {
		transferID := p.payer.TransferID
		counterparty := p.payee.ParticipantCurrencyID
		out = append(out, models.SettlementEntry{
			ParticipantCurrencyID:  p.payer.ParticipantCurrencyID,
			CounterPartyCurrencyID: &counterparty,
			CurrencyID:             p.payer.CurrencyID,
			Amount:                 p.payer.Amount,
			TransferID:             &transferID,
		})
	}
	return out
}

// buildBilateralNetEntries nets each ordered participant pair: opposing
// transfers between the same two accounts offset, and only the residual is
// settled. Pairs that net to zero produce no entry.
func buildBilateralNetEntries(legs []repository.SettlementLeg) []models.SettlementEntry {
	type pairKey struct{ low, high int64 }
	// Net amount is the flow from low to high; negative means high owes low.
	nets := map[pairKey]decimal.Decimal{}
	currencies := map[pairKey]string{}
	var order []pairKey
	for _, p := range pairLegs(legs) {
		payer, payee := p.payer.ParticipantCurrencyID, p.payee.ParticipantCurrencyID
		key := pairKey{low: payer, high: payee}
		amount := p.payer.Amount
		if payer > payee {
			key = pairKey{low: payee, high: payer}
			amount = amount.Neg()
		}
		if _, ok := nets[key]; !ok {
			order = append(order, key)
			currencies[key] = p.payer.CurrencyID
		}
		nets[key] = nets[key].Add(amount)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].low != order[j].low {
			return order[i].low < order[j].low
		}
		return order[i].high < order[j].high
	})

	var out []models.SettlementEntry
	for _, key := range order {
		net := nets[key]
		if net.IsZero() {
			continue
		}
		debtor, creditor := key.low, key.high
		if net.IsNegative() {
			debtor, creditor = key.high, key.low
			net = net.Neg()
		}
		creditorID := creditor
		out = append(out, models.SettlementEntry{
			ParticipantCurrencyID:  debtor,
			CounterPartyCurrencyID: &creditorID,
			CurrencyID:             currencies[key],
			Amount:                 net,
		})
	}
	return out
}

// buildMultilateralNetEntries nets each account against the whole scheme:
// one entry per account, positive when the account owes the scheme, negative
// when the scheme owes it. Zero nets are dropped.
func buildMultilateralNetEntries(legs []repository.SettlementLeg) []models.SettlementEntry {
	nets := map[int64]decimal.Decimal{}
	currencies := map[int64]string{}
	var order []int64
	for _, l := range legs {
		if _, ok := nets[l.ParticipantCurrencyID]; !ok {
			order = append(order, l.ParticipantCurrencyID)
			currencies[l.ParticipantCurrencyID] = l.CurrencyID
		}
		nets[l.ParticipantCurrencyID] = nets[l.ParticipantCurrencyID].Add(l.Amount)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var out []models.SettlementEntry
	for _, id := range order {
		if nets[id].IsZero() {
			continue
		}
		out = append(out, models.SettlementEntry{
			ParticipantCurrencyID: id,
			CurrencyID:            currencies[id],
			Amount:                nets[id],
		})
	}
	return out
}
