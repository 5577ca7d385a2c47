package engine

import (
	"context"

	"github.com/shandysiswandi/gosats/internal/wallet/entity"
)

// Invoice is the result of asking the engine for a new receive invoice.
type Invoice struct {
	OperationID    string
	PaymentRequest string
}

// PayResult is the engine's report of a completed outbound payment.
type PayResult struct {
	OperationID string
	Preimage    string
	AmountMsat  int64
	FeeMsat     int64
}

// ReceiveUpdate is one lifecycle event for an in-flight receive operation.
type ReceiveUpdate struct {
	State      entity.ReceiveState
	Invoice    string
	TimeoutSec int64
	Reason     string
}

// Capabilities describes what an engine implementation actually supports.
// It is decided once at construction instead of probing per call.
type Capabilities struct {
	LnReceiveStream bool
	BalanceStream   bool // false when the adapter emulates it by polling
}

// Engine is the external wallet engine boundary. Implementations perform
// the actual invoice generation, payment execution, and balance
// accounting; this module only orchestrates them.
//
// Stop functions returned by the subscribe methods are idempotent, and
// after one returns the corresponding callbacks are never invoked again.
type Engine interface {
	CreateInvoice(ctx context.Context, amountSat int64, memo string) (Invoice, error)
	SubscribeLnReceive(ctx context.Context, operationID string, onUpdate func(ReceiveUpdate), onErr func(error)) (func(), error)
	PayInvoice(ctx context.Context, paymentRequest string) (PayResult, error)
	SubscribeBalance(ctx context.Context, onBalance func(msat int64)) (func(), error)
	Capabilities() Capabilities
}

// InvoiceDecoder extracts the payable amount, in sats, from a payment
// request. Zero means the invoice does not pin an amount.
type InvoiceDecoder interface {
	DecodeAmount(paymentRequest string) (int64, error)
}
