package entity

// Transaction is a single entry in the payment ledger. ID is the operation
// identifier assigned by the wallet engine and is the ledger's primary key.
//
// The JSON tags define the persisted snapshot layout, so renaming a field
// breaks loading of previously stored ledgers.
type Transaction struct {
	ID        string `json:"id"`
	Kind      TxKind `json:"kind"`
	Amount    int64  `json:"amount"` // sats
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
	Invoice   string `json:"invoice"`

	// Receive-only fields.
	ReceiveState ReceiveState `json:"receive_state,omitempty"`
	CancelReason string       `json:"cancel_reason,omitempty"`

	// Send-only fields, filled from the engine pay result.
	Preimage string `json:"preimage,omitempty"`
	FeeMsat  int64  `json:"fee_msat,omitempty"`
}
