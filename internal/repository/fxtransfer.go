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

func (r *Repository) CreateFxTransfer(ctx context.Context, t *models.FxTransfer) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO fx_transfer
		 (commit_request_id, determining_transfer_id, initiating_fsp_id, counter_party_fsp_id,
		  source_amount, source_currency_id, target_amount, target_currency_id,
		  ilp_condition, expiration_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`,
		t.ID, t.DeterminingTransferID, t.InitiatingFspID, t.CounterPartyFspID,
		t.SourceAmount, t.SourceCurrencyID, t.TargetAmount, t.TargetCurrencyID,
		t.ILPCondition, t.ExpirationDate,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create fx transfer: %w", err)
	}
	return nil
}

func (r *Repository) GetFxTransfer(ctx context.Context, commitRequestID uuid.UUID) (*models.FxTransfer, error) {
	t := &models.FxTransfer{}
	err := r.db.QueryRow(ctx,
		`SELECT commit_request_id, determining_transfer_id, initiating_fsp_id, counter_party_fsp_id,
		        source_amount, source_currency_id, target_amount, target_currency_id,
		        ilp_condition, expiration_date, created_at
		 FROM fx_transfer WHERE commit_request_id = $1`,
		commitRequestID,
	).Scan(&t.ID, &t.DeterminingTransferID, &t.InitiatingFspID, &t.CounterPartyFspID,
		&t.SourceAmount, &t.SourceCurrencyID, &t.TargetAmount, &t.TargetCurrencyID,
		&t.ILPCondition, &t.ExpirationDate, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fx transfer: %w", err)
	}
	return t, nil
}

// GetFxTransfersByDeterminingID finds the fx legs linked to a determining
// transfer, used when the determining transfer resolves.
func (r *Repository) GetFxTransfersByDeterminingID(ctx context.Context, determiningTransferID uuid.UUID) ([]models.FxTransfer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT commit_request_id, determining_transfer_id, initiating_fsp_id, counter_party_fsp_id,
		        source_amount, source_currency_id, target_amount, target_currency_id,
		        ilp_condition, expiration_date, created_at
		 FROM fx_transfer WHERE determining_transfer_id = $1 ORDER BY created_at`,
		determiningTransferID)
	if err != nil {
		return nil, fmt.Errorf("get fx transfers by determining id: %w", err)
	}
	defer rows.Close()

	var out []models.FxTransfer
	for rows.Next() {
		var t models.FxTransfer
		if err := rows.Scan(&t.ID, &t.DeterminingTransferID, &t.InitiatingFspID, &t.CounterPartyFspID,
			&t.SourceAmount, &t.SourceCurrencyID, &t.TargetAmount, &t.TargetCurrencyID,
			&t.ILPCondition, &t.ExpirationDate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fx transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) InsertFxTransferStateChange(ctx context.Context, c *models.FxTransferStateChange) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO fx_transfer_state_change (commit_request_id, state, reason)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		c.CommitRequestID, c.State, nullIfEmpty(c.Reason),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fx transfer state change: %w", err)
	}
	return nil
}

func (r *Repository) GetLatestFxTransferState(ctx context.Context, commitRequestID uuid.UUID) (*models.FxTransferStateChange, error) {
	c := &models.FxTransferStateChange{}
	var reason *string
	err := r.db.QueryRow(ctx,
		`SELECT id, commit_request_id, state, reason, created_at
		 FROM fx_transfer_state_change WHERE commit_request_id = $1
		 ORDER BY id DESC LIMIT 1`,
		commitRequestID,
	).Scan(&c.ID, &c.CommitRequestID, &c.State, &reason, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest fx transfer state: %w", err)
	}
	if reason != nil {
		c.Reason = *reason
	}
	return c, nil
}

func (r *Repository) InsertFxTransferParticipant(ctx context.Context, p *models.FxTransferParticipant) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO fx_transfer_participant (commit_request_id, participant_currency_id, role, currency_type, amount)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		p.CommitRequestID, p.ParticipantCurrencyID, p.Role, p.CurrencyType, p.Amount,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert fx transfer participant: %w", err)
	}
	return nil
}

func (r *Repository) ListFxTransferParticipants(ctx context.Context, commitRequestID uuid.UUID) ([]models.FxTransferParticipant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, commit_request_id, participant_currency_id, role, currency_type, amount
		 FROM fx_transfer_participant WHERE commit_request_id = $1 ORDER BY id`,
		commitRequestID)
	if err != nil {
		return nil, fmt.Errorf("list fx transfer participants: %w", err)
	}
	defer rows.Close()

	var out []models.FxTransferParticipant
	for rows.Next() {
		var p models.FxTransferParticipant
		if err := rows.Scan(&p.ID, &p.CommitRequestID, &p.ParticipantCurrencyID, &p.Role, &p.CurrencyType, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan fx transfer participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) InsertFxTransferTimeout(ctx context.Context, commitRequestID uuid.UUID, expiration time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO fx_transfer_timeout (commit_request_id, expiration_date) VALUES ($1, $2)
		 ON CONFLICT (commit_request_id) DO NOTHING`,
		commitRequestID, expiration)
	if err != nil {
		return fmt.Errorf("insert fx transfer timeout: %w", err)
	}
	return nil
}

// ListFxTimeoutCandidates mirrors ListTimeoutCandidates for fx legs; each leg
// is swept on its own expiration, independent of its determining transfer.
func (r *Repository) ListFxTimeoutCandidates(ctx context.Context) ([]TimeoutCandidate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ft.id, ft.commit_request_id, ft.expiration_date, fsc.state
		 FROM fx_transfer_timeout ft
		 JOIN LATERAL (
		   SELECT state FROM fx_transfer_state_change
		   WHERE commit_request_id = ft.commit_request_id ORDER BY id DESC LIMIT 1
		 ) fsc ON TRUE
		 ORDER BY ft.id
		 FOR UPDATE OF ft SKIP LOCKED`)
	if err != nil {
		return nil, fmt.Errorf("list fx timeout candidates: %w", err)
	}
	defer rows.Close()

	var out []TimeoutCandidate
	for rows.Next() {
		var c TimeoutCandidate
		if err := rows.Scan(&c.TimeoutID, &c.ID, &c.ExpirationDate, &c.State); err != nil {
			return nil, fmt.Errorf("scan fx timeout candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteFxTransferTimeout(ctx context.Context, timeoutID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM fx_transfer_timeout WHERE id = $1`, timeoutID)
	if err != nil {
		return fmt.Errorf("delete fx transfer timeout: %w", err)
	}
	return nil
}

func (r *Repository) InsertFxTransferError(ctx context.Context, e *models.FxTransferError) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO fx_transfer_error (commit_request_id, fx_transfer_state_change_id, error_code, error_description)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		e.CommitRequestID, e.FxTransferStateChangeID, e.ErrorCode, e.ErrorDescription,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fx transfer error: %w", err)
	}
	return nil
}
