package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/models"
)

func (r *Repository) CreateSettlementModel(ctx context.Context, m *models.SettlementModel) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO settlement_model
		 (name, settlement_granularity, settlement_interchange, settlement_delay, currency_id,
		  require_liquidity_check, ledger_account_type, settlement_account_type, auto_position_reset, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at`,
		m.Name, m.Granularity, m.Interchange, m.Delay, m.CurrencyID,
		m.RequireLiquidityCheck, m.LedgerAccountType, m.SettlementAccountType, m.AutoPositionReset, m.IsActive,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrSettlementModelExists
		}
		return fmt.Errorf("create settlement model: %w", err)
	}
	return nil
}

// GetSettlementModelForCurrency resolves the model for a currency, falling
// back to the currency-null scheme default.
func (r *Repository) GetSettlementModelForCurrency(ctx context.Context, currencyID string) (*models.SettlementModel, error) {
	m := &models.SettlementModel{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, settlement_granularity, settlement_interchange, settlement_delay, currency_id,
		        require_liquidity_check, ledger_account_type, settlement_account_type, auto_position_reset, is_active, created_at
		 FROM settlement_model
		 WHERE is_active AND (currency_id = $1 OR currency_id IS NULL)
		 ORDER BY currency_id NULLS LAST LIMIT 1`,
		currencyID,
	).Scan(&m.ID, &m.Name, &m.Granularity, &m.Interchange, &m.Delay, &m.CurrencyID,
		&m.RequireLiquidityCheck, &m.LedgerAccountType, &m.SettlementAccountType, &m.AutoPositionReset, &m.IsActive, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settlement model for currency: %w", err)
	}
	return m, nil
}

func (r *Repository) ListSettlementModels(ctx context.Context) ([]models.SettlementModel, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, settlement_granularity, settlement_interchange, settlement_delay, currency_id,
		        require_liquidity_check, ledger_account_type, settlement_account_type, auto_position_reset, is_active, created_at
		 FROM settlement_model ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list settlement models: %w", err)
	}
	defer rows.Close()

	var out []models.SettlementModel
	for rows.Next() {
		var m models.SettlementModel
		if err := rows.Scan(&m.ID, &m.Name, &m.Granularity, &m.Interchange, &m.Delay, &m.CurrencyID,
			&m.RequireLiquidityCheck, &m.LedgerAccountType, &m.SettlementAccountType, &m.AutoPositionReset, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan settlement model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) SetSettlementModelFlags(ctx context.Context, modelID int64, isActive, autoPositionReset bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE settlement_model SET is_active = $1, auto_position_reset = $2 WHERE id = $3`,
		isActive, autoPositionReset, modelID)
	if err != nil {
		return fmt.Errorf("update settlement model flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSettlementModelInvalid
	}
	return nil
}

func (r *Repository) CreateSettlementWindow(ctx context.Context, reason string) (*models.SettlementWindow, error) {
	w := &models.SettlementWindow{State: domain.WindowOpen, Reason: reason}
	err := r.db.QueryRow(ctx,
		`INSERT INTO settlement_window DEFAULT VALUES RETURNING id, created_at`,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create settlement window: %w", err)
	}
	if err := r.InsertWindowStateChange(ctx, w.ID, domain.WindowOpen, reason); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *Repository) InsertWindowStateChange(ctx context.Context, windowID int64, state domain.SettlementWindowState, reason string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO settlement_window_state_change (settlement_window_id, state, reason) VALUES ($1, $2, $3)`,
		windowID, state, nullIfEmpty(reason))
	if err != nil {
		return fmt.Errorf("insert window state change: %w", err)
	}
	return nil
}

// GetOpenWindowForUpdate locks and returns the current OPEN window.
func (r *Repository) GetOpenWindowForUpdate(ctx context.Context) (*models.SettlementWindow, error) {
	w := &models.SettlementWindow{State: domain.WindowOpen}
	err := r.db.QueryRow(ctx,
		`SELECT sw.id, sw.created_at
		 FROM settlement_window sw
		 JOIN LATERAL (
		   SELECT state FROM settlement_window_state_change
		   WHERE settlement_window_id = sw.id ORDER BY id DESC LIMIT 1
		 ) sc ON sc.state = 'OPEN'
		 ORDER BY sw.id DESC LIMIT 1
		 FOR UPDATE OF sw`,
	).Scan(&w.ID, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no open settlement window", domain.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("get open settlement window: %w", err)
	}
	return w, nil
}

// GetOpenWindowID returns the current OPEN window without locking it, for
// assigning committed transfers.
func (r *Repository) GetOpenWindowID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT sw.id
		 FROM settlement_window sw
		 JOIN LATERAL (
		   SELECT state FROM settlement_window_state_change
		   WHERE settlement_window_id = sw.id ORDER BY id DESC LIMIT 1
		 ) sc ON sc.state = 'OPEN'
		 ORDER BY sw.id DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: no open settlement window", domain.ErrValidation)
	}
	if err != nil {
		return 0, fmt.Errorf("get open window id: %w", err)
	}
	return id, nil
}

// AssignTransferToWindow stamps the settlement window on a committed
// transfer. The only transfer column that changes after creation.
func (r *Repository) AssignTransferToWindow(ctx context.Context, transferID uuid.UUID, windowID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE transfer SET settlement_window_id = $1 WHERE transfer_id = $2`,
		windowID, transferID)
	if err != nil {
		return fmt.Errorf("assign transfer to window: %w", err)
	}
	return nil
}

func (r *Repository) GetWindowState(ctx context.Context, windowID int64) (domain.SettlementWindowState, error) {
	var state domain.SettlementWindowState
	err := r.db.QueryRow(ctx,
		`SELECT state FROM settlement_window_state_change
		 WHERE settlement_window_id = $1 ORDER BY id DESC LIMIT 1`,
		windowID,
	).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: settlement window %d not found", domain.ErrValidation, windowID)
	}
	if err != nil {
		return "", fmt.Errorf("get window state: %w", err)
	}
	return state, nil
}

func (r *Repository) CountWindowTransfers(ctx context.Context, windowID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM transfer WHERE settlement_window_id = $1`, windowID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count window transfers: %w", err)
	}
	return n, nil
}

// SettlementLeg is one debit/credit leg of a COMMITTED transfer inside a
// window, the raw material for gross/net settlement grouping.
type SettlementLeg struct {
	TransferID            uuid.UUID
	ParticipantCurrencyID int64
	Role                  domain.ParticipantRole
	CurrencyID            string
	Amount                decimal.Decimal
}

// ListCommittedWindowLegs returns the participant legs of all COMMITTED
// transfers assigned to the window.
func (r *Repository) ListCommittedWindowLegs(ctx context.Context, windowID int64) ([]SettlementLeg, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tp.transfer_id, tp.participant_currency_id, tp.role, t.currency_id, tp.amount
		 FROM transfer t
		 JOIN transfer_participant tp ON tp.transfer_id = t.transfer_id
		 JOIN LATERAL (
		   SELECT state FROM transfer_state_change
		   WHERE transfer_id = t.transfer_id ORDER BY id DESC LIMIT 1
		 ) tsc ON tsc.state = 'COMMITTED'
		 WHERE t.settlement_window_id = $1
		 ORDER BY tp.transfer_id, tp.id`,
		windowID)
	if err != nil {
		return nil, fmt.Errorf("list committed window legs: %w", err)
	}
	defer rows.Close()

	var out []SettlementLeg
	for rows.Next() {
		var l SettlementLeg
		if err := rows.Scan(&l.TransferID, &l.ParticipantCurrencyID, &l.Role, &l.CurrencyID, &l.Amount); err != nil {
			return nil, fmt.Errorf("scan settlement leg: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) CreateSettlement(ctx context.Context, s *models.Settlement) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO settlement (settlement_window_id, settlement_model_id)
		 VALUES ($1, $2) RETURNING id, created_at`,
		s.SettlementWindowID, s.SettlementModelID,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create settlement: %w", err)
	}
	return nil
}

func (r *Repository) InsertSettlementEntry(ctx context.Context, e *models.SettlementEntry) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO settlement_entry
		 (settlement_id, participant_currency_id, counter_party_currency_id, currency_id, amount, transfer_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		e.SettlementID, e.ParticipantCurrencyID, e.CounterPartyCurrencyID, e.CurrencyID, e.Amount, e.TransferID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert settlement entry: %w", err)
	}
	return nil
}

func (r *Repository) ListSettlementEntries(ctx context.Context, settlementID int64) ([]models.SettlementEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, settlement_id, participant_currency_id, counter_party_currency_id, currency_id, amount, transfer_id, created_at
		 FROM settlement_entry WHERE settlement_id = $1 ORDER BY id`,
		settlementID)
	if err != nil {
		return nil, fmt.Errorf("list settlement entries: %w", err)
	}
	defer rows.Close()

	var out []models.SettlementEntry
	for rows.Next() {
		var e models.SettlementEntry
		if err := rows.Scan(&e.ID, &e.SettlementID, &e.ParticipantCurrencyID, &e.CounterPartyCurrencyID, &e.CurrencyID, &e.Amount, &e.TransferID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan settlement entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAutoResetAccounts returns POSITION-account currency ids in the window's
// currencies whose settlement model has auto_position_reset enabled.
func (r *Repository) ListAutoResetAccounts(ctx context.Context, modelID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT pc.id
		 FROM participant_currency pc
		 JOIN settlement_model sm ON sm.id = $1
		 WHERE sm.auto_position_reset
		   AND pc.ledger_account_type = sm.ledger_account_type
		   AND (sm.currency_id IS NULL OR pc.currency_id = sm.currency_id)`,
		modelID)
	if err != nil {
		return nil, fmt.Errorf("list auto reset accounts: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan auto reset account: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
