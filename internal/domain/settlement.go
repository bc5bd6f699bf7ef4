package domain

// SettlementGranularity controls whether transfers settle one-by-one or as a
// netted batch.
type SettlementGranularity string

const (
	GranularityGross SettlementGranularity = "GROSS"
	GranularityNet   SettlementGranularity = "NET"
)

// SettlementInterchange controls the scope of netting.
type SettlementInterchange string

const (
	InterchangeBilateral    SettlementInterchange = "BILATERAL"
	InterchangeMultilateral SettlementInterchange = "MULTILATERAL"
)

// SettlementDelay controls when settlement happens relative to commitment.
type SettlementDelay string

const (
	DelayImmediate SettlementDelay = "IMMEDIATE"
	DelayDeferred  SettlementDelay = "DEFERRED"
)

type settlementTuple struct {
	granularity SettlementGranularity
	interchange SettlementInterchange
	delay       SettlementDelay
}

// Only these combinations are meaningful: immediate settlement implies gross
// bilateral entries, deferred settlement implies netting.
var validSettlementTuples = map[settlementTuple]struct{}{
	{GranularityNet, InterchangeBilateral, DelayDeferred}:    {},
	{GranularityNet, InterchangeMultilateral, DelayDeferred}: {},
	{GranularityGross, InterchangeBilateral, DelayImmediate}: {},
}

// ValidSettlementModel reports whether the granularity/interchange/delay
// combination is supported.
func ValidSettlementModel(g SettlementGranularity, i SettlementInterchange, d SettlementDelay) bool {
	_, ok := validSettlementTuples[settlementTuple{g, i, d}]
	return ok
}

// SettlementWindowState tracks a window through its lifecycle. Tracked via an
// append-only state-change table, same as transfers.
type SettlementWindowState string

const (
	WindowOpen              SettlementWindowState = "OPEN"
	WindowClosed            SettlementWindowState = "CLOSED"
	WindowPendingSettlement SettlementWindowState = "PENDING_SETTLEMENT"
	WindowSettled           SettlementWindowState = "SETTLED"
	WindowAborted           SettlementWindowState = "ABORTED"
)
