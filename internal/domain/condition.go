package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// Conditions and fulfilments are interledger-style: the condition is the
// SHA-256 digest of the 32-byte fulfilment preimage, both carried as
// unpadded base64url.

const preimageLength = 32

// ValidateCondition checks the wire format of a condition.
func ValidateCondition(condition string) error {
	raw, err := base64.RawURLEncoding.DecodeString(condition)
	if err != nil {
		return fmt.Errorf("%w: condition is not base64url", ErrValidation)
	}
	if len(raw) != preimageLength {
		return fmt.Errorf("%w: condition must decode to %d bytes", ErrValidation, preimageLength)
	}
	return nil
}

// VerifyFulfilment checks that SHA-256(fulfilment) equals the prepared
// condition, byte for byte. A mismatch is terminal and non-retryable.
func VerifyFulfilment(fulfilment, condition string) error {
	preimage, err := base64.RawURLEncoding.DecodeString(fulfilment)
	if err != nil || len(preimage) != preimageLength {
		return ErrInvalidFulfilment
	}
	expected, err := base64.RawURLEncoding.DecodeString(condition)
	if err != nil || len(expected) != preimageLength {
		return ErrInvalidFulfilment
	}
	digest := sha256.Sum256(preimage)
	if subtle.ConstantTimeCompare(digest[:], expected) != 1 {
		return ErrInvalidFulfilment
	}
	return nil
}

// MakeCondition derives the condition for a fulfilment preimage. Used by
// tests and tooling, the switch itself only ever verifies.
func MakeCondition(preimage []byte) (condition, fulfilment string) {
	digest := sha256.Sum256(preimage)
	return base64.RawURLEncoding.EncodeToString(digest[:]),
		base64.RawURLEncoding.EncodeToString(preimage)
}
