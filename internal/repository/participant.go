package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/models"
)

func (r *Repository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO participant (name, is_active, is_proxy) VALUES ($1, $2, $3) RETURNING id, created_at`,
		p.Name, p.IsActive, p.IsProxy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrParticipantExists
		}
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (r *Repository) GetParticipantByName(ctx context.Context, name string) (*models.Participant, error) {
	p := &models.Participant{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, is_active, is_proxy, created_at FROM participant WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.IsActive, &p.IsProxy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (r *Repository) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, is_active, is_proxy, created_at FROM participant ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.IsActive, &p.IsProxy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) SetParticipantActive(ctx context.Context, participantID int64, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE participant SET is_active = $1 WHERE id = $2`, active, participantID)
	if err != nil {
		return fmt.Errorf("set participant active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (r *Repository) CreateParticipantCurrencyAccount(ctx context.Context, a *models.ParticipantCurrencyAccount) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO participant_currency (participant_id, currency_id, ledger_account_type, is_active)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		a.ParticipantID, a.CurrencyID, a.LedgerAccountType, a.IsActive,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrCurrencyAlreadyRegistered
		}
		return fmt.Errorf("create participant currency account: %w", err)
	}
	return nil
}

// SetParticipantAccountActive flips a single currency account, scoped to the
// owning participant so a caller cannot toggle another participant's account.
func (r *Repository) SetParticipantAccountActive(ctx context.Context, participantID, accountID int64, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE participant_currency SET is_active = $1 WHERE id = $2 AND participant_id = $3`,
		active, accountID, participantID)
	if err != nil {
		return fmt.Errorf("set participant account active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// GetParticipantAccount resolves the account of a participant for a currency
// and ledger account type.
func (r *Repository) GetParticipantAccount(ctx context.Context, participantID int64, currencyID string, accountType domain.LedgerAccountType) (*models.ParticipantCurrencyAccount, error) {
	a := &models.ParticipantCurrencyAccount{}
	err := r.db.QueryRow(ctx,
		`SELECT id, participant_id, currency_id, ledger_account_type, is_active, created_at
		 FROM participant_currency
		 WHERE participant_id = $1 AND currency_id = $2 AND ledger_account_type = $3`,
		participantID, currencyID, accountType,
	).Scan(&a.ID, &a.ParticipantID, &a.CurrencyID, &a.LedgerAccountType, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant account: %w", err)
	}
	return a, nil
}

func (r *Repository) ListParticipantAccounts(ctx context.Context, participantID int64) ([]models.ParticipantCurrencyAccount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, participant_id, currency_id, ledger_account_type, is_active, created_at
		 FROM participant_currency WHERE participant_id = $1 ORDER BY id`,
		participantID)
	if err != nil {
		return nil, fmt.Errorf("list participant accounts: %w", err)
	}
	defer rows.Close()

	var out []models.ParticipantCurrencyAccount
	for rows.Next() {
		var a models.ParticipantCurrencyAccount
		if err := rows.Scan(&a.ID, &a.ParticipantID, &a.CurrencyID, &a.LedgerAccountType, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListParticipantsWithoutAccountType finds participants holding a POSITION
// account in the currency but missing the given account type. Used by
// settlement model creation to backfill settlement accounts.
func (r *Repository) ListParticipantsWithoutAccountType(ctx context.Context, currencyID string, accountType domain.LedgerAccountType) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT pc.participant_id
		 FROM participant_currency pc
		 WHERE pc.currency_id = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM participant_currency x
		     WHERE x.participant_id = pc.participant_id
		       AND x.currency_id = pc.currency_id
		       AND x.ledger_account_type = $2)`,
		currencyID, accountType)
	if err != nil {
		return nil, fmt.Errorf("list participants without account type: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repository) CreateParticipantPosition(ctx context.Context, participantCurrencyID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO participant_position (participant_currency_id) VALUES ($1)`,
		participantCurrencyID)
	if err != nil {
		return fmt.Errorf("create participant position: %w", err)
	}
	return nil
}

// GetPositionForUpdate reads the position row under FOR UPDATE so concurrent
// transfers touching the same account serialize. Must run inside a
// transaction.
func (r *Repository) GetPositionForUpdate(ctx context.Context, participantCurrencyID int64) (*models.ParticipantPosition, error) {
	p := &models.ParticipantPosition{}
	err := r.db.QueryRow(ctx,
		`SELECT id, participant_currency_id, value, reserved_value, changed_date
		 FROM participant_position WHERE participant_currency_id = $1 FOR UPDATE`,
		participantCurrencyID,
	).Scan(&p.ID, &p.ParticipantCurrencyID, &p.Value, &p.ReservedValue, &p.ChangedDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock participant position: %w", err)
	}
	return p, nil
}

func (r *Repository) GetPosition(ctx context.Context, participantCurrencyID int64) (*models.ParticipantPosition, error) {
	p := &models.ParticipantPosition{}
	err := r.db.QueryRow(ctx,
		`SELECT id, participant_currency_id, value, reserved_value, changed_date
		 FROM participant_position WHERE participant_currency_id = $1`,
		participantCurrencyID,
	).Scan(&p.ID, &p.ParticipantCurrencyID, &p.Value, &p.ReservedValue, &p.ChangedDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant position: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdatePosition(ctx context.Context, positionID int64, value, reservedValue decimal.Decimal) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE participant_position SET value = $1, reserved_value = $2, changed_date = NOW() WHERE id = $3`,
		value, reservedValue, positionID)
	if err != nil {
		return fmt.Errorf("update participant position: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update participant position: expected 1 row, got %d", tag.RowsAffected())
	}
	return nil
}

func (r *Repository) InsertPositionChange(ctx context.Context, c *models.ParticipantPositionChange) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO participant_position_change
		 (participant_position_id, transfer_state_change_id, value, reserved_value)
		 VALUES ($1, $2, $3, $4) RETURNING id, changed_date`,
		c.ParticipantPositionID, c.TransferStateChangeID, c.Value, c.ReservedValue,
	).Scan(&c.ID, &c.ChangedDate)
	if err != nil {
		return fmt.Errorf("insert position change: %w", err)
	}
	return nil
}

func (r *Repository) ListPositionChanges(ctx context.Context, participantPositionID int64, limit int) ([]models.ParticipantPositionChange, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, participant_position_id, transfer_state_change_id, value, reserved_value, changed_date
		 FROM participant_position_change
		 WHERE participant_position_id = $1 ORDER BY id DESC LIMIT $2`,
		participantPositionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list position changes: %w", err)
	}
	defer rows.Close()

	var out []models.ParticipantPositionChange
	for rows.Next() {
		var c models.ParticipantPositionChange
		if err := rows.Scan(&c.ID, &c.ParticipantPositionID, &c.TransferStateChangeID, &c.Value, &c.ReservedValue, &c.ChangedDate); err != nil {
			return nil, fmt.Errorf("scan position change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertParticipantLimit(ctx context.Context, l *models.ParticipantLimit) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO participant_limit
		 (participant_currency_id, limit_type, value, threshold_alarm_percentage, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (participant_currency_id, limit_type)
		 DO UPDATE SET value = EXCLUDED.value,
		               threshold_alarm_percentage = EXCLUDED.threshold_alarm_percentage,
		               is_active = EXCLUDED.is_active
		 RETURNING id, created_at`,
		l.ParticipantCurrencyID, l.LimitType, l.Value, l.ThresholdAlarmPercentage, l.IsActive,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert participant limit: %w", err)
	}
	return nil
}

// GetActiveLimit returns the active limit of the given type, or
// domain.ErrLimitNotFound when none is configured.
func (r *Repository) GetActiveLimit(ctx context.Context, participantCurrencyID int64, limitType domain.LimitType) (*models.ParticipantLimit, error) {
	l := &models.ParticipantLimit{}
	err := r.db.QueryRow(ctx,
		`SELECT id, participant_currency_id, limit_type, value, threshold_alarm_percentage, is_active, created_at
		 FROM participant_limit
		 WHERE participant_currency_id = $1 AND limit_type = $2 AND is_active`,
		participantCurrencyID, limitType,
	).Scan(&l.ID, &l.ParticipantCurrencyID, &l.LimitType, &l.Value, &l.ThresholdAlarmPercentage, &l.IsActive, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLimitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant limit: %w", err)
	}
	return l, nil
}
