package domain

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyFulfilmentRoundTrip(t *testing.T) {
	preimage := bytes.Repeat([]byte{0xAB}, 32)
	condition, fulfilment := MakeCondition(preimage)

	require.NoError(t, ValidateCondition(condition))
	assert.NoError(t, VerifyFulfilment(fulfilment, condition))
}

func TestVerifyFulfilmentMismatch(t *testing.T) {
	condition, _ := MakeCondition(bytes.Repeat([]byte{0x01}, 32))
	_, wrongFulfilment := MakeCondition(bytes.Repeat([]byte{0x02}, 32))

	assert.ErrorIs(t, VerifyFulfilment(wrongFulfilment, condition), ErrInvalidFulfilment)
}

func TestVerifyFulfilmentBadEncoding(t *testing.T) {
	condition, _ := MakeCondition(bytes.Repeat([]byte{0x03}, 32))

	assert.ErrorIs(t, VerifyFulfilment("not base64!!", condition), ErrInvalidFulfilment)

	// Correct encoding, wrong preimage length.
	short := base64.RawURLEncoding.EncodeToString([]byte("short"))
	assert.ErrorIs(t, VerifyFulfilment(short, condition), ErrInvalidFulfilment)
}

func TestValidateCondition(t *testing.T) {
	assert.ErrorIs(t, ValidateCondition("***"), ErrValidation)

	tooShort := base64.RawURLEncoding.EncodeToString([]byte{1, 2, 3})
	assert.ErrorIs(t, ValidateCondition(tooShort), ErrValidation)

	ok := base64.RawURLEncoding.EncodeToString(bytes.Repeat([]byte{0}, 32))
	assert.NoError(t, ValidateCondition(ok))
}
