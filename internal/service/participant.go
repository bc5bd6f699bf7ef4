package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/models"
	"github.com/kayode-ade/central-ledger/internal/repository"
)

// SettlementModelSource resolves the active settlement model governing a
// currency. Satisfied by SettlementService, which serves reads from its
// cache and invalidates on model changes.
type SettlementModelSource interface {
	ModelForCurrency(ctx context.Context, currencyID string) (*models.SettlementModel, error)
}

// ParticipantService is the participant and account registry: identity,
// currency accounts, positions and limits.
type ParticipantService struct {
	store  QueryStore
	models SettlementModelSource
}

func NewParticipantService(store QueryStore, models SettlementModelSource) *ParticipantService {
	return &ParticipantService{store: store, models: models}
}

type CreateParticipantRequest struct {
	Name    string
	IsProxy bool
}

func (s *ParticipantService) CreateParticipant(ctx context.Context, req CreateParticipantRequest) (*models.Participant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: participant name is required", domain.ErrValidation)
	}
	p := &models.Participant{Name: name, IsActive: true, IsProxy: req.IsProxy}
	if err := s.store.Repo().CreateParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ParticipantService) GetParticipant(ctx context.Context, name string) (*models.Participant, error) {
	return s.store.Repo().GetParticipantByName(ctx, name)
}

func (s *ParticipantService) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	return s.store.Repo().ListParticipants(ctx)
}

func (s *ParticipantService) SetParticipantActive(ctx context.Context, name string, active bool) error {
	p, err := s.store.Repo().GetParticipantByName(ctx, name)
	if err != nil {
		return err
	}
	return s.store.Repo().SetParticipantActive(ctx, p.ID, active)
}

// SetAccountActive flips one of the participant's currency accounts.
// Deactivating an account blocks new prepares against it; in-flight transfers
// still resolve.
func (s *ParticipantService) SetAccountActive(ctx context.Context, name string, accountID int64, active bool) error {
	p, err := s.store.Repo().GetParticipantByName(ctx, name)
	if err != nil {
		return err
	}
	return s.store.Repo().SetParticipantAccountActive(ctx, p.ID, accountID, active)
}

// RegisterCurrency provisions the ledger accounts a participant needs for a
// currency: the POSITION account plus the accounts linked by the currency's
// settlement model. All accounts and their position rows are created in one
// transaction.
func (s *ParticipantService) RegisterCurrency(ctx context.Context, name, currencyID string) ([]models.ParticipantCurrencyAccount, error) {
	currencyID = strings.ToUpper(strings.TrimSpace(currencyID))
	if len(currencyID) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter ISO code", domain.ErrValidation)
	}

	p, err := s.store.Repo().GetParticipantByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, domain.ErrParticipantInactive
	}

	accountTypes := []domain.LedgerAccountType{domain.AccountTypePosition}
	model, err := s.models.ModelForCurrency(ctx, currencyID)
	if err != nil {
		return nil, err
	}
	if model != nil && model.SettlementAccountType != domain.AccountTypePosition {
		accountTypes = append(accountTypes, model.SettlementAccountType)
	}

	var accounts []models.ParticipantCurrencyAccount
	err = s.store.RunInTx(ctx, func(r *repository.Repository) error {
		for _, at := range accountTypes {
			a := models.ParticipantCurrencyAccount{
				ParticipantID:     p.ID,
				CurrencyID:        currencyID,
				LedgerAccountType: at,
				IsActive:          true,
			}
			if err := r.CreateParticipantCurrencyAccount(ctx, &a); err != nil {
				return err
			}
			if err := r.CreateParticipantPosition(ctx, a.ID); err != nil {
				return err
			}
			accounts = append(accounts, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *ParticipantService) ListAccounts(ctx context.Context, name string) ([]models.ParticipantCurrencyAccount, error) {
	p, err := s.store.Repo().GetParticipantByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.store.Repo().ListParticipantAccounts(ctx, p.ID)
}

type SetLimitRequest struct {
	Name                     string
	CurrencyID               string
	Value                    decimal.Decimal
	ThresholdAlarmPercentage decimal.Decimal
}

// SetNetDebitCap sets or replaces the NET_DEBIT_CAP on the participant's
// POSITION account for the currency.
func (s *ParticipantService) SetNetDebitCap(ctx context.Context, req SetLimitRequest) (*models.ParticipantLimit, error) {
	if !req.Value.IsPositive() {
		return nil, fmt.Errorf("%w: limit value must be positive", domain.ErrValidation)
	}
	account, err := s.resolvePositionAccount(ctx, req.Name, req.CurrencyID)
	if err != nil {
		return nil, err
	}
	threshold := req.ThresholdAlarmPercentage
	if threshold.IsZero() {
		threshold = decimal.NewFromInt(10)
	}
	limit := &models.ParticipantLimit{
		ParticipantCurrencyID:    account.ID,
		LimitType:                domain.LimitTypeNetDebitCap,
		Value:                    req.Value,
		ThresholdAlarmPercentage: threshold,
		IsActive:                 true,
	}
	if err := s.store.Repo().UpsertParticipantLimit(ctx, limit); err != nil {
		return nil, err
	}
	return limit, nil
}

// PositionView pairs an account with its current position.
type PositionView struct {
	Account  models.ParticipantCurrencyAccount `json:"account"`
	Position models.ParticipantPosition        `json:"position"`
}

func (s *ParticipantService) GetPositions(ctx context.Context, name string) ([]PositionView, error) {
	accounts, err := s.ListAccounts(ctx, name)
	if err != nil {
		return nil, err
	}
	var out []PositionView
	for _, a := range accounts {
		pos, err := s.store.Repo().GetPosition(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, PositionView{Account: a, Position: *pos})
	}
	return out, nil
}

func (s *ParticipantService) resolvePositionAccount(ctx context.Context, name, currencyID string) (*models.ParticipantCurrencyAccount, error) {
	p, err := s.store.Repo().GetParticipantByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.store.Repo().GetParticipantAccount(ctx, p.ID, strings.ToUpper(currencyID), domain.AccountTypePosition)
}
