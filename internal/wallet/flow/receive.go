package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shandysiswandi/gosats/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosats/internal/wallet/engine"
	"github.com/shandysiswandi/gosats/internal/wallet/entity"
)

const receiveMemo = "Receive payment"

// ReceiveSnapshot is the receive flow surface shown to the UI.
type ReceiveSnapshot struct {
	Invoice string
	Paid    bool
	Err     string
	State   entity.ReceiveState // empty when no operation is outstanding
}

type ReceiveDependency struct {
	Engine engine.Engine
	Ledger Ledger
	Clock  Clock
}

// Receive drives a single outstanding receive operation: it asks the
// engine for an invoice, records the transaction, and projects the
// engine's lifecycle events into ledger updates. At most one engine
// subscription is live at a time; starting a new operation tears down
// the previous one and a generation counter keeps late events from a
// torn-down subscription from touching the new operation.
type Receive struct {
	engine engine.Engine
	ledger Ledger
	clock  Clock

	mu      sync.Mutex
	gen     int
	stop    func()
	invoice string
	paid    bool
	errMsg  string
	state   entity.ReceiveState
}

func NewReceive(dep ReceiveDependency) *Receive {
	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Receive{
		engine: dep.Engine,
		ledger: dep.Ledger,
		clock:  clock,
	}
}

// CreateInvoice requests an invoice for amountSat, appends an optimistic
// ledger record in state created, and subscribes to the engine's event
// stream for the operation. The created transaction is returned so the
// caller can display the invoice and operation id.
func (r *Receive) CreateInvoice(ctx context.Context, amountSat int64) (entity.Transaction, error) {
	if amountSat <= 0 {
		return entity.Transaction{}, pkgerror.NewInvalidInput(errors.New("amount must be a positive integer"))
	}

	r.mu.Lock()
	stop := r.stop
	r.stop = nil
	r.gen++
	myGen := r.gen
	r.invoice = ""
	r.paid = false
	r.errMsg = ""
	r.state = ""
	r.mu.Unlock()

	if stop != nil {
		stop()
	}

	created, err := r.engine.CreateInvoice(ctx, amountSat, receiveMemo)
	if err != nil {
		r.setError(myGen, err.Error())
		return entity.Transaction{}, pkgerror.NewBusiness(err.Error(), pkgerror.CodeConflict)
	}

	tx := entity.Transaction{
		ID:           created.OperationID,
		Kind:         entity.TxKindReceive,
		Amount:       amountSat,
		Timestamp:    r.clock.Now().UnixMilli(),
		Invoice:      created.PaymentRequest,
		ReceiveState: entity.ReceiveStateCreated,
	}
	if err := r.ledger.Append(tx); err != nil {
		r.setError(myGen, err.Error())
		return entity.Transaction{}, mapLedgerErr(err)
	}

	r.mu.Lock()
	if r.gen == myGen {
		r.invoice = created.PaymentRequest
		r.state = entity.ReceiveStateCreated
	}
	r.mu.Unlock()

	stopSub, err := r.engine.SubscribeLnReceive(ctx, created.OperationID,
		func(update engine.ReceiveUpdate) { r.onUpdate(myGen, tx, update) },
		func(err error) { r.onStreamError(myGen, err) },
	)
	if err != nil {
		r.setError(myGen, err.Error())
		return tx, pkgerror.NewBusiness(err.Error(), pkgerror.CodeConflict)
	}

	r.mu.Lock()
	if r.gen == myGen {
		r.stop = stopSub
		r.mu.Unlock()
	} else {
		// a newer operation started while we were subscribing
		r.mu.Unlock()
		stopSub()
	}

	return tx, nil
}

func (r *Receive) onUpdate(gen int, tx entity.Transaction, update engine.ReceiveUpdate) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}

	r.state = update.State
	switch update.State {
	case entity.ReceiveStateClaimed:
		r.paid = true
	case entity.ReceiveStateCanceled:
		r.errMsg = update.Reason
	}
	terminal := update.State.Terminal()
	r.mu.Unlock()

	record := tx
	record.ReceiveState = update.State
	if update.Invoice != "" {
		record.Invoice = update.Invoice
	}
	if update.State == entity.ReceiveStateCanceled {
		record.CancelReason = update.Reason
	}

	if err := r.ledger.Update(record); err != nil {
		slog.Warn("failed to project receive event into ledger", "operation_id", tx.ID, "state", update.State, "error", err)
	}

	if terminal {
		r.teardown(gen)
	}
}

func (r *Receive) onStreamError(gen int, err error) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	r.errMsg = err.Error()
	r.mu.Unlock()

	r.teardown(gen)
}

// ResetState clears the flow-local surface without touching the ledger:
// an abandoned operation's record stays exactly as last observed.
func (r *Receive) ResetState() {
	r.mu.Lock()
	stop := r.stop
	r.stop = nil
	r.gen++
	r.invoice = ""
	r.paid = false
	r.errMsg = ""
	r.state = ""
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (r *Receive) Snapshot() ReceiveSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return ReceiveSnapshot{
		Invoice: r.invoice,
		Paid:    r.paid,
		Err:     r.errMsg,
		State:   r.state,
	}
}

func (r *Receive) setError(gen int, msg string) {
	r.mu.Lock()
	if r.gen == gen {
		r.errMsg = msg
	}
	r.mu.Unlock()
}

func (r *Receive) teardown(gen int) {
	r.mu.Lock()
	var stop func()
	if r.gen == gen && r.stop != nil {
		stop = r.stop
		r.stop = nil
	}
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
}
