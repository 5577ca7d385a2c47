package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/shandysiswandi/gosats/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosats/internal/wallet/engine"
	"github.com/shandysiswandi/gosats/internal/wallet/entity"
)

// SendSnapshot is the send flow surface shown to the UI.
type SendSnapshot struct {
	Sending bool
	Err     string
}

type SendDependency struct {
	Engine  engine.Engine
	Decoder engine.InvoiceDecoder
	Ledger  Ledger
	Clock   Clock
}

// Send drives a single outbound payment. Unlike receives, which are
// recorded optimistically at creation, a send is recorded only after the
// engine confirms success.
type Send struct {
	engine  engine.Engine
	decoder engine.InvoiceDecoder
	ledger  Ledger
	clock   Clock

	mu      sync.Mutex
	sending bool
	errMsg  string
}

func NewSend(dep SendDependency) *Send {
	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Send{
		engine:  dep.Engine,
		decoder: dep.Decoder,
		ledger:  dep.Ledger,
		clock:   clock,
	}
}

// PayInvoice pays the given bolt11 invoice and, on success, appends a
// send record keyed by the engine-returned operation id. The amount is
// decoded from the invoice itself, falling back to the engine-reported
// amount when the invoice does not pin one.
func (s *Send) PayInvoice(ctx context.Context, invoice string) (entity.Transaction, error) {
	invoice = strings.TrimSpace(invoice)
	if invoice == "" {
		return entity.Transaction{}, pkgerror.NewInvalidInput(errors.New("invoice is required"))
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return entity.Transaction{}, pkgerror.NewBusiness("a payment is already in flight", pkgerror.CodeConflict)
	}
	s.sending = true
	s.errMsg = ""
	s.mu.Unlock()

	// the flag is released whatever happens below
	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	result, err := s.engine.PayInvoice(ctx, invoice)
	if err != nil {
		s.mu.Lock()
		s.errMsg = err.Error()
		s.mu.Unlock()
		return entity.Transaction{}, pkgerror.NewBusiness(err.Error(), pkgerror.CodeConflict)
	}

	tx := entity.Transaction{
		ID:        result.OperationID,
		Kind:      entity.TxKindSend,
		Amount:    s.deriveAmount(invoice, result),
		Timestamp: s.clock.Now().UnixMilli(),
		Invoice:   invoice,
		Preimage:  result.Preimage,
		FeeMsat:   result.FeeMsat,
	}
	if err := s.ledger.Append(tx); err != nil {
		s.mu.Lock()
		s.errMsg = err.Error()
		s.mu.Unlock()
		return entity.Transaction{}, mapLedgerErr(err)
	}

	return tx, nil
}

func (s *Send) deriveAmount(invoice string, result engine.PayResult) int64 {
	if s.decoder != nil {
		amount, err := s.decoder.DecodeAmount(invoice)
		if err == nil && amount > 0 {
			return amount
		}
		if err != nil {
			slog.Warn("failed to decode invoice amount", "error", err)
		}
	}

	if result.AmountMsat > 0 {
		return result.AmountMsat / 1000
	}

	slog.Warn("send amount could not be derived, recording zero")

	return 0
}

// ResetState clears the flow-local surface; idempotent.
func (s *Send) ResetState() {
	s.mu.Lock()
	s.sending = false
	s.errMsg = ""
	s.mu.Unlock()
}

func (s *Send) Snapshot() SendSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SendSnapshot{
		Sending: s.sending,
		Err:     s.errMsg,
	}
}
