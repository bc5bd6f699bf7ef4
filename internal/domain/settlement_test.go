package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSettlementModel(t *testing.T) {
	assert.True(t, ValidSettlementModel(GranularityNet, InterchangeBilateral, DelayDeferred))
	assert.True(t, ValidSettlementModel(GranularityNet, InterchangeMultilateral, DelayDeferred))
	assert.True(t, ValidSettlementModel(GranularityGross, InterchangeBilateral, DelayImmediate))

	// Netting requires deferral; immediate settlement cannot be multilateral.
	assert.False(t, ValidSettlementModel(GranularityNet, InterchangeBilateral, DelayImmediate))
	assert.False(t, ValidSettlementModel(GranularityNet, InterchangeMultilateral, DelayImmediate))
	assert.False(t, ValidSettlementModel(GranularityGross, InterchangeMultilateral, DelayImmediate))
	assert.False(t, ValidSettlementModel(GranularityGross, InterchangeBilateral, DelayDeferred))
	assert.False(t, ValidSettlementModel(GranularityGross, InterchangeMultilateral, DelayDeferred))
	assert.False(t, ValidSettlementModel("", "", ""))
}
