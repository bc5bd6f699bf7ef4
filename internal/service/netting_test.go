package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayode-ade/central-ledger/internal/domain"
	"github.com/kayode-ade/central-ledger/internal/repository"
)

func legPair(payer, payee int64, amount string) []repository.SettlementLeg {
	id := uuid.New()
	amt := decimal.RequireFromString(amount)
	return []repository.SettlementLeg{
		{TransferID: id, ParticipantCurrencyID: payer, Role: domain.RoleInitiatingFSP, CurrencyID: "USD", Amount: amt},
		{TransferID: id, ParticipantCurrencyID: payee, Role: domain.RoleCounterPartyFSP, CurrencyID: "USD", Amount: amt.Neg()},
	}
}

func TestBuildGrossEntries(t *testing.T) {
	legs := append(legPair(1, 2, "100"), legPair(2, 1, "40")...)

	entries := buildGrossEntries(legs)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(1), entries[0].ParticipantCurrencyID)
	require.NotNil(t, entries[0].CounterPartyCurrencyID)
	assert.Equal(t, int64(2), *entries[0].CounterPartyCurrencyID)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("100")))
	assert.NotNil(t, entries[0].TransferID)

	assert.Equal(t, int64(2), entries[1].ParticipantCurrencyID)
	assert.True(t, entries[1].Amount.Equal(decimal.RequireFromString("40")))
}

func TestBuildBilateralNetEntries(t *testing.T) {
	legs := append(legPair(1, 2, "100"), legPair(2, 1, "30")...)
	legs = append(legs, legPair(3, 1, "25")...)

	entries := buildBilateralNetEntries(legs)
	require.Len(t, entries, 2)

	// 1 paid 2 a hundred, 2 paid 1 thirty: account 1 owes 70 net.
	assert.Equal(t, int64(1), entries[0].ParticipantCurrencyID)
	require.NotNil(t, entries[0].CounterPartyCurrencyID)
	assert.Equal(t, int64(2), *entries[0].CounterPartyCurrencyID)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("70")))

	// 3 paid 1, no opposing flow: 3 owes 25.
	assert.Equal(t, int64(3), entries[1].ParticipantCurrencyID)
	assert.Equal(t, int64(1), *entries[1].CounterPartyCurrencyID)
	assert.True(t, entries[1].Amount.Equal(decimal.RequireFromString("25")))
}

func TestBuildBilateralNetDropsZeroPairs(t *testing.T) {
	legs := append(legPair(1, 2, "50"), legPair(2, 1, "50")...)

	entries := buildBilateralNetEntries(legs)
	assert.Empty(t, entries)
}

func TestBuildMultilateralNetEntries(t *testing.T) {
	// 1 -> 2: 100, 2 -> 3: 60, 3 -> 1: 10.
	legs := append(legPair(1, 2, "100"), legPair(2, 3, "60")...)
	legs = append(legs, legPair(3, 1, "10")...)

	entries := buildMultilateralNetEntries(legs)
	require.Len(t, entries, 3)

	byAccount := map[int64]decimal.Decimal{}
	for _, e := range entries {
		assert.Nil(t, e.CounterPartyCurrencyID)
		byAccount[e.ParticipantCurrencyID] = e.Amount
	}
	assert.True(t, byAccount[1].Equal(decimal.RequireFromString("90")))
	assert.True(t, byAccount[2].Equal(decimal.RequireFromString("-40")))
	assert.True(t, byAccount[3].Equal(decimal.RequireFromString("-50")))
}

func TestBuildMultilateralNetDropsZeroAccounts(t *testing.T) {
	legs := append(legPair(1, 2, "75"), legPair(2, 1, "75")...)

	entries := buildMultilateralNetEntries(legs)
	assert.Empty(t, entries)
}

func TestHashPayloadStable(t *testing.T) {
	req := PrepareTransferRequest{PayerFsp: "dfsp-a", PayeeFsp: "dfsp-b", Amount: "10.00", Currency: "USD"}

	h1, err := HashPayload(req)
	require.NoError(t, err)
	h2, err := HashPayload(req)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	req.Amount = "10.01"
	h3, err := HashPayload(req)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
