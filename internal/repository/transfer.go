package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/models"
)

func (r *Repository) CreateTransfer(ctx context.Context, t *models.Transfer) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO transfer (transfer_id, amount, currency_id, ilp_condition, expiration_date, settlement_window_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		t.ID, t.Amount, t.CurrencyID, t.ILPCondition, t.ExpirationDate, t.SettlementWindowID,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

func (r *Repository) GetTransfer(ctx context.Context, transferID uuid.UUID) (*models.Transfer, error) {
	t := &models.Transfer{}
	err := r.db.QueryRow(ctx,
		`SELECT transfer_id, amount, currency_id, ilp_condition, expiration_date, settlement_window_id, created_at
		 FROM transfer WHERE transfer_id = $1`,
		transferID,
	).Scan(&t.ID, &t.Amount, &t.CurrencyID, &t.ILPCondition, &t.ExpirationDate, &t.SettlementWindowID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return t, nil
}

// InsertTransferStateChange appends a state-change row; the log is
// INSERT-only by contract.
func (r *Repository) InsertTransferStateChange(ctx context.Context, c *models.TransferStateChange) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO transfer_state_change (transfer_id, state, reason)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		c.TransferID, c.State, nullIfEmpty(c.Reason),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transfer state change: %w", err)
	}
	return nil
}

// GetLatestTransferState returns the authoritative current state: the
// state-change row with the highest id.
func (r *Repository) GetLatestTransferState(ctx context.Context, transferID uuid.UUID) (*models.TransferStateChange, error) {
	c := &models.TransferStateChange{}
	var reason *string
	err := r.db.QueryRow(ctx,
		`SELECT id, transfer_id, state, reason, created_at
		 FROM transfer_state_change WHERE transfer_id = $1
		 ORDER BY id DESC LIMIT 1`,
		transferID,
	).Scan(&c.ID, &c.TransferID, &c.State, &reason, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest transfer state: %w", err)
	}
	if reason != nil {
		c.Reason = *reason
	}
	return c, nil
}

func (r *Repository) InsertTransferParticipant(ctx context.Context, p *models.TransferParticipant) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO transfer_participant (transfer_id, participant_currency_id, role, amount)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		p.TransferID, p.ParticipantCurrencyID, p.Role, p.Amount,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert transfer participant: %w", err)
	}
	return nil
}

func (r *Repository) ListTransferParticipants(ctx context.Context, transferID uuid.UUID) ([]models.TransferParticipant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, transfer_id, participant_currency_id, role, amount
		 FROM transfer_participant WHERE transfer_id = $1 ORDER BY id`,
		transferID)
	if err != nil {
		return nil, fmt.Errorf("list transfer participants: %w", err)
	}
	defer rows.Close()

	var out []models.TransferParticipant
	for rows.Next() {
		var p models.TransferParticipant
		if err := rows.Scan(&p.ID, &p.TransferID, &p.ParticipantCurrencyID, &p.Role, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan transfer participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveDuplicateCheck records the request hash for a transfer id. Returns the
// previously stored hash when the id was seen before.
func (r *Repository) SaveDuplicateCheck(ctx context.Context, table string, id uuid.UUID, hash string) (existing string, found bool, err error) {
	var col string
	switch table {
	case "transfer_duplicate_check", "transfer_fulfilment_duplicate_check":
		col = "transfer_id"
	case "fx_transfer_duplicate_check", "fx_transfer_fulfilment_duplicate_check":
		col = "commit_request_id"
	default:
		return "", false, fmt.Errorf("unknown duplicate check table %q", table)
	}

	// Insert-or-read in one statement so two racing requests cannot both
	// claim first-writer.
	query := fmt.Sprintf(
		`WITH ins AS (
		   INSERT INTO %s (%s, hash) VALUES ($1, $2)
		   ON CONFLICT (%s) DO NOTHING
		   RETURNING hash
		 )
		 SELECT hash, TRUE FROM %s WHERE %s = $1 AND NOT EXISTS (SELECT 1 FROM ins)
		 UNION ALL
		 SELECT hash, FALSE FROM ins`, table, col, col, table, col)

	err = r.db.QueryRow(ctx, query, id, hash).Scan(&existing, &found)
	if err != nil {
		return "", false, fmt.Errorf("save duplicate check: %w", err)
	}
	return existing, found, nil
}

func (r *Repository) InsertTransferTimeout(ctx context.Context, transferID uuid.UUID, expiration time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transfer_timeout (transfer_id, expiration_date) VALUES ($1, $2)
		 ON CONFLICT (transfer_id) DO NOTHING`,
		transferID, expiration)
	if err != nil {
		return fmt.Errorf("insert transfer timeout: %w", err)
	}
	return nil
}

// TimeoutCandidate joins a timeout work-queue row to its latest state.
type TimeoutCandidate struct {
	TimeoutID      int64
	ID             uuid.UUID
	ExpirationDate time.Time
	State          domain.TransferState
}

// ListTimeoutCandidates returns all timeout rows with the current state of
// their transfer, locked so a concurrent sweep cannot double-process them.
func (r *Repository) ListTimeoutCandidates(ctx context.Context) ([]TimeoutCandidate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tt.id, tt.transfer_id, tt.expiration_date, tsc.state
		 FROM transfer_timeout tt
		 JOIN LATERAL (
		   SELECT state FROM transfer_state_change
		   WHERE transfer_id = tt.transfer_id ORDER BY id DESC LIMIT 1
		 ) tsc ON TRUE
		 ORDER BY tt.id
		 FOR UPDATE OF tt SKIP LOCKED`)
	if err != nil {
		return nil, fmt.Errorf("list timeout candidates: %w", err)
	}
	defer rows.Close()

	var out []TimeoutCandidate
	for rows.Next() {
		var c TimeoutCandidate
		if err := rows.Scan(&c.TimeoutID, &c.ID, &c.ExpirationDate, &c.State); err != nil {
			return nil, fmt.Errorf("scan timeout candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteTransferTimeout(ctx context.Context, timeoutID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM transfer_timeout WHERE id = $1`, timeoutID)
	if err != nil {
		return fmt.Errorf("delete transfer timeout: %w", err)
	}
	return nil
}

func (r *Repository) InsertTransferError(ctx context.Context, e *models.TransferError) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO transfer_error (transfer_id, transfer_state_change_id, error_code, error_description)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		e.TransferID, e.TransferStateChangeID, e.ErrorCode, e.ErrorDescription,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transfer error: %w", err)
	}
	return nil
}

func (r *Repository) GetTransferError(ctx context.Context, transferID uuid.UUID) (*models.TransferError, error) {
	e := &models.TransferError{}
	err := r.db.QueryRow(ctx,
		`SELECT id, transfer_id, transfer_state_change_id, error_code, error_description, created_at
		 FROM transfer_error WHERE transfer_id = $1 ORDER BY id DESC LIMIT 1`,
		transferID,
	).Scan(&e.ID, &e.TransferID, &e.TransferStateChangeID, &e.ErrorCode, &e.ErrorDescription, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer error: %w", err)
	}
	return e, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
