package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    TransferState
		to      TransferState
		allowed bool
	}{
		{"prepare to reserved", StateReceivedPrepare, StateReserved, true},
		{"prepare to invalid", StateReceivedPrepare, StateInvalid, true},
		{"reserved to fulfil", StateReserved, StateReceivedFulfil, true},
		{"reserved to dependent fulfil", StateReserved, StateReceivedFulfilDependent, true},
		{"reserved to reject", StateReserved, StateReceivedReject, true},
		{"reserved to timeout", StateReserved, StateReservedTimeout, true},
		{"fulfil to committed", StateReceivedFulfil, StateCommitted, true},
		{"dependent fulfil to committed", StateReceivedFulfilDependent, StateCommitted, true},
		{"reject to aborted", StateReceivedReject, StateAbortedRejected, true},
		{"timeout to expired", StateReservedTimeout, StateExpiredReserved, true},

		{"committed is terminal", StateCommitted, StateReserved, false},
		{"no skip straight to committed", StateReceivedPrepare, StateCommitted, false},
		{"no reserved to committed", StateReserved, StateCommitted, false},
		{"no resurrecting expired", StateExpiredReserved, StateReserved, false},
		{"no aborted to committed", StateAbortedError, StateCommitted, false},
		{"unknown state", TransferState("BOGUS"), StateReserved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []TransferState{
		StateCommitted, StateAbortedRejected, StateAbortedError,
		StateExpiredPrepared, StateExpiredReserved, StateFailed, StateInvalid,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "state %s", s)
	}

	nonTerminal := []TransferState{
		StateReceivedPrepare, StateReserved, StateReceivedFulfil,
		StateReceivedFulfilDependent, StateReceivedReject, StateReservedTimeout,
	}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "state %s", s)
	}
}

func TestIsTimeoutHandled(t *testing.T) {
	// The sweeper only acts on transfers still in flight.
	assert.False(t, StateReserved.IsTimeoutHandled())
	assert.False(t, StateReceivedPrepare.IsTimeoutHandled())
	assert.False(t, StateReceivedFulfilDependent.IsTimeoutHandled())

	assert.True(t, StateCommitted.IsTimeoutHandled())
	assert.True(t, StateAbortedError.IsTimeoutHandled())
	assert.True(t, StateExpiredReserved.IsTimeoutHandled())
	assert.True(t, StateInvalid.IsTimeoutHandled())
}
