package entity

type TxKind string

const (
	TxKindSend    TxKind = "send"
	TxKindReceive TxKind = "receive"
)

// ReceiveState is the lifecycle state of an inbound Lightning payment as
// reported by the wallet engine.
type ReceiveState string

const (
	ReceiveStateCreated           ReceiveState = "created"
	ReceiveStateWaitingForPayment ReceiveState = "waiting_for_payment"
	ReceiveStateFunded            ReceiveState = "funded"
	ReceiveStateAwaitingFunds     ReceiveState = "awaiting_funds"
	ReceiveStateClaimed           ReceiveState = "claimed"
	ReceiveStateCanceled          ReceiveState = "canceled"
)

//nolint:gochecknoglobals // static lookup table
var receiveStateRank = map[ReceiveState]int{
	ReceiveStateCreated:           0,
	ReceiveStateWaitingForPayment: 1,
	ReceiveStateFunded:            2,
	ReceiveStateAwaitingFunds:     3,
	ReceiveStateClaimed:           4,
}

// Valid reports whether s is a known lifecycle state.
func (s ReceiveState) Valid() bool {
	if s == ReceiveStateCanceled {
		return true
	}
	_, ok := receiveStateRank[s]
	return ok
}

// Terminal reports whether no further state can follow s.
func (s ReceiveState) Terminal() bool {
	return s == ReceiveStateClaimed || s == ReceiveStateCanceled
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// The lifecycle only moves forward; canceled is reachable from any
// non-terminal state and nothing follows claimed or canceled.
func (s ReceiveState) CanTransition(next ReceiveState) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == ReceiveStateCanceled {
		return true
	}
	return receiveStateRank[next] > receiveStateRank[s]
}
