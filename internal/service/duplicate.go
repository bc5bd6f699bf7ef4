package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/observability"
	"github.com/kayode-ade/central-ledger/internal/repository"
)

// HashPayload produces the canonical request hash used for duplicate
// detection: SHA-256 of the JSON encoding, base64url.
func HashPayload(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	digest := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// checkDuplicate records the hash for id and classifies the request:
// first-writer proceeds, identical hash is an idempotent replay
// (domain.ErrDuplicateRequest), different hash is a conflict
// (domain.ErrModifiedRequest).
func checkDuplicate(ctx context.Context, r *repository.Repository, table string, id uuid.UUID, hash string) error {
	existing, found, err := r.SaveDuplicateCheck(ctx, table, id, hash)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if existing == hash {
		observability.IncrementDuplicateRequest("replay")
		return domain.ErrDuplicateRequest
	}
	observability.IncrementDuplicateRequest("conflict")
	return domain.ErrModifiedRequest
}
