package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/gosats/internal/wallet/engine"
	"github.com/shandysiswandi/gosats/internal/wallet/entity"
	"github.com/shandysiswandi/gosats/internal/wallet/gateway"
	"github.com/shandysiswandi/gosats/internal/wallet/state"
)

func newSendFixture(t *testing.T, eng *fakeEngine, decoder engine.InvoiceDecoder) (*Send, *state.Store) {
	t.Helper()

	store := state.New(state.Dependency{Gateway: gateway.NewMemory(), Key: "ledger"})
	send := NewSend(SendDependency{
		Engine:  eng,
		Decoder: decoder,
		Ledger:  store,
		Clock:   fixedClock{now: time.UnixMilli(1700000000000)},
	})

	return send, store
}

func TestPayInvoiceRejectsEmptyInvoice(t *testing.T) {
	t.Parallel()

	send, store := newSendFixture(t, &fakeEngine{}, nil)

	for _, invoice := range []string{"", "   "} {
		if _, err := send.PayInvoice(context.Background(), invoice); err == nil {
			t.Fatalf("PayInvoice(%q) expected error", invoice)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("ledger len = %d, want 0", store.Len())
	}
}

func TestPayInvoiceRecordsDecodedAmount(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{payResult: engine.PayResult{
		OperationID: "contract-1",
		Preimage:    "00ff",
		AmountMsat:  2500000,
		FeeMsat:     120,
	}}
	send, store := newSendFixture(t, eng, fakeDecoder{amount: 2500})

	tx, err := send.PayInvoice(context.Background(), "lnbc25u1fake")
	if err != nil {
		t.Fatalf("PayInvoice() err = %v", err)
	}

	if tx.ID != "contract-1" || tx.Kind != entity.TxKindSend {
		t.Fatalf("send tx = %+v", tx)
	}
	if tx.Amount != 2500 {
		t.Fatalf("amount = %d, want decoded 2500", tx.Amount)
	}
	if tx.Preimage != "00ff" || tx.FeeMsat != 120 {
		t.Fatalf("pay metadata = %+v", tx)
	}

	txs := store.Transactions()
	if len(txs) != 1 || txs[0].ID != "contract-1" {
		t.Fatalf("ledger = %+v", txs)
	}

	snap := send.Snapshot()
	if snap.Sending || snap.Err != "" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestPayInvoiceFallsBackToEngineAmount(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{payResult: engine.PayResult{OperationID: "contract-2", AmountMsat: 1234000}}
	send, store := newSendFixture(t, eng, fakeDecoder{err: errors.New("not bolt11")})

	tx, err := send.PayInvoice(context.Background(), "lnbc1fake")
	if err != nil {
		t.Fatalf("PayInvoice() err = %v", err)
	}
	if tx.Amount != 1234 {
		t.Fatalf("amount = %d, want engine-reported 1234", tx.Amount)
	}
	if store.Len() != 1 {
		t.Fatalf("ledger len = %d", store.Len())
	}
}

// Scenario: the engine rejects the payment. The ledger stays unchanged,
// the flow error carries the engine message, and the in-flight flag is
// released.
func TestPayInvoiceEngineFailure(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{payErr: errors.New("insufficient funds")}
	send, store := newSendFixture(t, eng, nil)

	if _, err := send.PayInvoice(context.Background(), "lnbc1fake"); err == nil {
		t.Fatal("PayInvoice() expected error")
	}

	if store.Len() != 0 {
		t.Fatal("ledger must stay unchanged on failure")
	}

	snap := send.Snapshot()
	if snap.Err != "insufficient funds" {
		t.Fatalf("snapshot err = %q, want engine message", snap.Err)
	}
	if snap.Sending {
		t.Fatal("in-flight flag must be released after failure")
	}
}

func TestSendResetStateIdempotent(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{payErr: errors.New("boom")}
	send, _ := newSendFixture(t, eng, nil)

	_, _ = send.PayInvoice(context.Background(), "lnbc1fake")

	send.ResetState()
	send.ResetState()

	snap := send.Snapshot()
	if snap.Sending || snap.Err != "" {
		t.Fatalf("snapshot after reset = %+v, want zero value", snap)
	}
}
