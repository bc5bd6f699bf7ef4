package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kayode-ade/central-ledger/internal/domain"
)

type Participant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	IsProxy   bool      `json:"is_proxy"`
	CreatedAt time.Time `json:"created_at"`
}

// ParticipantCurrencyAccount is one ledger account of a participant. The
// (participant, currency, ledger account type) triple is unique.
type ParticipantCurrencyAccount struct {
	ID                int64                    `json:"id"`
	ParticipantID     int64                    `json:"participant_id"`
	CurrencyID        string                   `json:"currency_id"`
	LedgerAccountType domain.LedgerAccountType `json:"ledger_account_type"`
	IsActive          bool                     `json:"is_active"`
	CreatedAt         time.Time                `json:"created_at"`
}

// ParticipantPosition is the running balance of a POSITION (or settlement)
// account. Value holds committed effects only; ReservedValue holds in-flight
// reservations. Mutated exclusively by the position engine under a row lock.
type ParticipantPosition struct {
	ID                    int64           `json:"id"`
	ParticipantCurrencyID int64           `json:"participant_currency_id"`
	Value                 decimal.Decimal `json:"value"`
	ReservedValue         decimal.Decimal `json:"reserved_value"`
	ChangedDate           time.Time       `json:"changed_date"`
}

// ParticipantPositionChange is the append-only audit row written on every
// position mutation.
type ParticipantPositionChange struct {
	ID                    int64           `json:"id"`
	ParticipantPositionID int64           `json:"participant_position_id"`
	TransferStateChangeID int64           `json:"transfer_state_change_id"`
	Value                 decimal.Decimal `json:"value"`
	ReservedValue         decimal.Decimal `json:"reserved_value"`
	ChangedDate           time.Time       `json:"changed_date"`
}

type ParticipantLimit struct {
	ID                       int64            `json:"id"`
	ParticipantCurrencyID    int64            `json:"participant_currency_id"`
	LimitType                domain.LimitType `json:"limit_type"`
	Value                    decimal.Decimal  `json:"value"`
	ThresholdAlarmPercentage decimal.Decimal  `json:"threshold_alarm_percentage"`
	IsActive                 bool             `json:"is_active"`
	CreatedAt                time.Time        `json:"created_at"`
}

// Transfer core fields are immutable once created; lifecycle lives in
// TransferStateChange rows.
type Transfer struct {
	ID                 uuid.UUID       `json:"transfer_id"`
	Amount             decimal.Decimal `json:"amount"`
	CurrencyID         string          `json:"currency_id"`
	ILPCondition       string          `json:"ilp_condition"`
	ExpirationDate     time.Time       `json:"expiration_date"`
	SettlementWindowID *int64          `json:"settlement_window_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type TransferStateChange struct {
	ID         int64                `json:"id"`
	TransferID uuid.UUID            `json:"transfer_id"`
	State      domain.TransferState `json:"state"`
	Reason     string               `json:"reason,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// TransferParticipant binds a transfer leg to a participant currency account
// with a signed amount. Positive = debit exposure for that account.
type TransferParticipant struct {
	ID                    int64                  `json:"id"`
	TransferID            uuid.UUID              `json:"transfer_id"`
	ParticipantCurrencyID int64                  `json:"participant_currency_id"`
	Role                  domain.ParticipantRole `json:"role"`
	Amount                decimal.Decimal        `json:"amount"`
}

// TransferTimeout is the sweeper's work queue, one row per in-flight
// transfer, deleted once the transfer is handled.
type TransferTimeout struct {
	ID             int64     `json:"id"`
	TransferID     uuid.UUID `json:"transfer_id"`
	ExpirationDate time.Time `json:"expiration_date"`
	CreatedAt      time.Time `json:"created_at"`
}

type TransferError struct {
	ID                    int64     `json:"id"`
	TransferID            uuid.UUID `json:"transfer_id"`
	TransferStateChangeID int64     `json:"transfer_state_change_id"`
	ErrorCode             string    `json:"error_code"`
	ErrorDescription      string    `json:"error_description"`
	CreatedAt             time.Time `json:"created_at"`
}

// FxTransfer is the currency-conversion leg executed by an FXP, linked to a
// determining transfer. Identified by the commit request id.
type FxTransfer struct {
	ID                    uuid.UUID       `json:"commit_request_id"`
	DeterminingTransferID uuid.UUID       `json:"determining_transfer_id"`
	InitiatingFspID       int64           `json:"initiating_fsp_id"`
	CounterPartyFspID     int64           `json:"counter_party_fsp_id"`
	SourceAmount          decimal.Decimal `json:"source_amount"`
	SourceCurrencyID      string          `json:"source_currency_id"`
	TargetAmount          decimal.Decimal `json:"target_amount"`
	TargetCurrencyID      string          `json:"target_currency_id"`
	ILPCondition          string          `json:"ilp_condition"`
	ExpirationDate        time.Time       `json:"expiration_date"`
	CreatedAt             time.Time       `json:"created_at"`
}

type FxTransferStateChange struct {
	ID              int64                `json:"id"`
	CommitRequestID uuid.UUID            `json:"commit_request_id"`
	State           domain.TransferState `json:"state"`
	Reason          string               `json:"reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

type FxTransferParticipant struct {
	ID                    int64                  `json:"id"`
	CommitRequestID       uuid.UUID              `json:"commit_request_id"`
	ParticipantCurrencyID int64                  `json:"participant_currency_id"`
	Role                  domain.ParticipantRole `json:"role"`
	CurrencyType          domain.FxCurrencyType  `json:"currency_type"`
	Amount                decimal.Decimal        `json:"amount"`
}

type FxTransferTimeout struct {
	ID              int64     `json:"id"`
	CommitRequestID uuid.UUID `json:"commit_request_id"`
	ExpirationDate  time.Time `json:"expiration_date"`
	CreatedAt       time.Time `json:"created_at"`
}

type FxTransferError struct {
	ID                      int64     `json:"id"`
	CommitRequestID         uuid.UUID `json:"commit_request_id"`
	FxTransferStateChangeID int64     `json:"fx_transfer_state_change_id"`
	ErrorCode               string    `json:"error_code"`
	ErrorDescription        string    `json:"error_description"`
	CreatedAt               time.Time `json:"created_at"`
}

// SettlementModel is immutable after creation apart from the IsActive and
// AutoPositionReset toggles. A nil CurrencyID marks the scheme default.
type SettlementModel struct {
	ID                    int64                        `json:"id"`
	Name                  string                       `json:"name"`
	Granularity           domain.SettlementGranularity `json:"settlement_granularity"`
	Interchange           domain.SettlementInterchange `json:"settlement_interchange"`
	Delay                 domain.SettlementDelay       `json:"settlement_delay"`
	CurrencyID            *string                      `json:"currency_id,omitempty"`
	RequireLiquidityCheck bool                         `json:"require_liquidity_check"`
	LedgerAccountType     domain.LedgerAccountType     `json:"ledger_account_type"`
	SettlementAccountType domain.LedgerAccountType     `json:"settlement_account_type"`
	AutoPositionReset     bool                         `json:"auto_position_reset"`
	IsActive              bool                         `json:"is_active"`
	CreatedAt             time.Time                    `json:"created_at"`
}

type SettlementWindow struct {
	ID        int64                        `json:"id"`
	State     domain.SettlementWindowState `json:"state"`
	Reason    string                       `json:"reason,omitempty"`
	CreatedAt time.Time                    `json:"created_at"`
}

type Settlement struct {
	ID                 int64     `json:"id"`
	SettlementWindowID int64     `json:"settlement_window_id"`
	SettlementModelID  int64     `json:"settlement_model_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// SettlementEntry is one net (or gross) obligation produced by settlement
// execution: what ParticipantCurrencyID owes (positive) or is owed
// (negative), optionally against a bilateral counterparty.
type SettlementEntry struct {
	ID                     int64           `json:"id"`
	SettlementID           int64           `json:"settlement_id"`
	ParticipantCurrencyID  int64           `json:"participant_currency_id"`
	CounterPartyCurrencyID *int64          `json:"counter_party_currency_id,omitempty"`
	CurrencyID             string          `json:"currency_id"`
	Amount                 decimal.Decimal `json:"amount"`
	TransferID             *uuid.UUID      `json:"transfer_id,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}
