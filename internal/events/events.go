// Package events carries state-transition and position-mutation
// notifications to the messaging layer. Events are keyed by the affected
// participantCurrencyId so downstream consumers can partition per account.
package events

import (
	"context"
	"time"
)

// Topics the switch publishes to.
const (
	TopicTransferState  = "central-ledger.transfer.state"
	TopicPositionChange = "central-ledger.position.change"
	TopicTimeout        = "central-ledger.transfer.timeout"
)

// TransferStateEvent is emitted once per accepted state transition.
type TransferStateEvent struct {
	Action                string    `json:"action"`
	TransferID            string    `json:"transfer_id"`
	NewState              string    `json:"new_state"`
	ParticipantCurrencyID int64     `json:"participant_currency_id"`
	IsFx                  bool      `json:"is_fx,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// PositionChangeEvent is emitted once per position mutation.
type PositionChangeEvent struct {
	Action                string    `json:"action"`
	TransferID            string    `json:"transfer_id"`
	ParticipantCurrencyID int64     `json:"participant_currency_id"`
	Value                 string    `json:"value"`
	ReservedValue         string    `json:"reserved_value"`
	Timestamp             time.Time `json:"timestamp"`
}

// Publisher is the outbound messaging contract. Publishing must not
// participate in the database transaction; callers publish after commit.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close() error
}

// Noop discards all events. Used when no brokers are configured and in tests.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
func (Noop) Close() error                                       { return nil }
