package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shandysiswandi/gosats/internal/wallet/engine"
)

type fakeEngine struct {
	mu        sync.Mutex
	createErr error
	subErr    error
	payErr    error
	payResult engine.PayResult
	counter   int
	subs      []*fakeSub
}

func (f *fakeEngine) CreateInvoice(ctx context.Context, amountSat int64, memo string) (engine.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return engine.Invoice{}, f.createErr
	}

	f.counter++
	return engine.Invoice{
		OperationID:    fmt.Sprintf("op-%d", f.counter),
		PaymentRequest: fmt.Sprintf("lnbc1fake%d", f.counter),
	}, nil
}

func (f *fakeEngine) SubscribeLnReceive(ctx context.Context, operationID string, onUpdate func(engine.ReceiveUpdate), onErr func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subErr != nil {
		return nil, f.subErr
	}

	sub := &fakeSub{opID: operationID, onUpdate: onUpdate, onErr: onErr}
	f.subs = append(f.subs, sub)

	return sub.stop, nil
}

func (f *fakeEngine) PayInvoice(ctx context.Context, paymentRequest string) (engine.PayResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.payErr != nil {
		return engine.PayResult{}, f.payErr
	}
	return f.payResult, nil
}

func (f *fakeEngine) SubscribeBalance(ctx context.Context, onBalance func(msat int64)) (func(), error) {
	return func() {}, nil
}

func (f *fakeEngine) Capabilities() engine.Capabilities {
	return engine.Capabilities{LnReceiveStream: true, BalanceStream: true}
}

func (f *fakeEngine) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func (f *fakeEngine) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// fakeSub records stop calls but keeps its callbacks callable, so tests
// can replay late deliveries and exercise the controller's own guards.
type fakeSub struct {
	mu       sync.Mutex
	opID     string
	onUpdate func(engine.ReceiveUpdate)
	onErr    func(error)
	stops    int
}

func (s *fakeSub) stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *fakeSub) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *fakeSub) emit(update engine.ReceiveUpdate) {
	s.onUpdate(update)
}

func (s *fakeSub) fail(err error) {
	s.onErr(err)
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

type fakeDecoder struct {
	amount int64
	err    error
}

func (f fakeDecoder) DecodeAmount(paymentRequest string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.amount, nil
}

var errEngineDown = errors.New("engine unavailable")
