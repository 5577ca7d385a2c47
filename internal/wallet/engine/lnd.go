package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"

	"github.com/shandysiswandi/gosats/internal/wallet/entity"
)

const defaultPayTimeout = 60 * time.Second

type LNDConfig struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
	BalancePoll  time.Duration
	PayTimeout   time.Duration
	FeeLimitMsat int64
}

// LND implements Engine over the lnd gRPC API.
type LND struct {
	conn     *grpc.ClientConn
	ln       lnrpc.LightningClient
	invoices invoicesrpc.InvoicesClient
	router   routerrpc.RouterClient

	balancePoll  time.Duration
	payTimeout   time.Duration
	feeLimitMsat int64
}

func NewLND(cfg LNDConfig) (*LND, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("load tls cert: %w", err)
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("read macaroon: %w", err)
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("unmarshal macaroon: %w", err)
	}

	macCreds, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("macaroon credential: %w", err)
	}

	conn, err := grpc.Dial(cfg.Host,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCreds),
	)
	if err != nil {
		return nil, fmt.Errorf("dial lnd: %w", err)
	}

	balancePoll := cfg.BalancePoll
	if balancePoll <= 0 {
		balancePoll = 10 * time.Second
	}

	payTimeout := cfg.PayTimeout
	if payTimeout <= 0 {
		payTimeout = defaultPayTimeout
	}

	return &LND{
		conn:         conn,
		ln:           lnrpc.NewLightningClient(conn),
		invoices:     invoicesrpc.NewInvoicesClient(conn),
		router:       routerrpc.NewRouterClient(conn),
		balancePoll:  balancePoll,
		payTimeout:   payTimeout,
		feeLimitMsat: cfg.FeeLimitMsat,
	}, nil
}

func (l *LND) Close() error {
	return l.conn.Close()
}

func (l *LND) Capabilities() Capabilities {
	return Capabilities{
		LnReceiveStream: true,
		BalanceStream:   false, // emulated by polling ChannelBalance
	}
}

// CreateInvoice adds an invoice to lnd. The operation id is the payment
// hash in hex, which is what SubscribeLnReceive expects back.
func (l *LND) CreateInvoice(ctx context.Context, amountSat int64, memo string) (Invoice, error) {
	resp, err := l.ln.AddInvoice(ctx, &lnrpc.Invoice{
		Value: amountSat,
		Memo:  memo,
	})
	if err != nil {
		return Invoice{}, err
	}

	return Invoice{
		OperationID:    hex.EncodeToString(resp.RHash),
		PaymentRequest: resp.PaymentRequest,
	}, nil
}

func (l *LND) SubscribeLnReceive(ctx context.Context, operationID string, onUpdate func(ReceiveUpdate), onErr func(error)) (func(), error) {
	hash, err := hex.DecodeString(operationID)
	if err != nil {
		return nil, fmt.Errorf("operation id is not a payment hash: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := l.invoices.SubscribeSingleInvoice(streamCtx, &invoicesrpc.SubscribeSingleInvoiceRequest{
		RHash: hash,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &lndSubscription{cancel: cancel}
	go sub.deliver(stream, onUpdate, onErr)

	return sub.stop, nil
}

// lndSubscription guards callback delivery: once stop is observed no
// further callback starts, and a terminal update marks the subscription
// stopped before its own callback runs so stop may be called from inside
// it.
type lndSubscription struct {
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

func (s *lndSubscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

func (s *lndSubscription) deliver(stream invoicesrpc.Invoices_SubscribeSingleInvoiceClient, onUpdate func(ReceiveUpdate), onErr func(error)) {
	for {
		invoice, err := stream.Recv()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.stopped = true
			s.mu.Unlock()
			if !stopped {
				onErr(err)
			}
			return
		}

		update := mapInvoiceUpdate(invoice)
		terminal := update.State.Terminal()

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		if terminal {
			s.stopped = true
		}
		s.mu.Unlock()

		// The callback runs outside the lock: a terminal update makes the
		// receive flow call stop, which takes the same lock.
		onUpdate(update)

		if terminal {
			s.cancel()
			return
		}
	}
}

func mapInvoiceUpdate(invoice *lnrpc.Invoice) ReceiveUpdate {
	switch invoice.State {
	case lnrpc.Invoice_OPEN:
		return ReceiveUpdate{
			State:      entity.ReceiveStateWaitingForPayment,
			Invoice:    invoice.PaymentRequest,
			TimeoutSec: invoice.Expiry,
		}
	case lnrpc.Invoice_ACCEPTED:
		return ReceiveUpdate{State: entity.ReceiveStateFunded}
	case lnrpc.Invoice_SETTLED:
		return ReceiveUpdate{State: entity.ReceiveStateClaimed}
	case lnrpc.Invoice_CANCELED:
		return ReceiveUpdate{
			State:  entity.ReceiveStateCanceled,
			Reason: "invoice canceled or expired",
		}
	default:
		return ReceiveUpdate{State: entity.ReceiveStateCreated}
	}
}

// PayInvoice sends the payment and blocks until lnd reports a terminal
// payment status.
func (l *LND) PayInvoice(ctx context.Context, paymentRequest string) (PayResult, error) {
	stream, err := l.router.SendPaymentV2(ctx, &routerrpc.SendPaymentRequest{
		PaymentRequest: paymentRequest,
		TimeoutSeconds: int32(l.payTimeout / time.Second),
		FeeLimitMsat:   l.feeLimitMsat,
	})
	if err != nil {
		return PayResult{}, err
	}

	for {
		payment, err := stream.Recv()
		if err != nil {
			return PayResult{}, err
		}

		switch payment.Status {
		case lnrpc.Payment_SUCCEEDED:
			return PayResult{
				OperationID: payment.PaymentHash,
				Preimage:    payment.PaymentPreimage,
				AmountMsat:  payment.ValueMsat,
				FeeMsat:     payment.FeeMsat,
			}, nil
		case lnrpc.Payment_FAILED:
			return PayResult{}, errors.New(payFailureMessage(payment.FailureReason))
		default:
			// in flight, keep waiting
		}
	}
}

func payFailureMessage(reason lnrpc.PaymentFailureReason) string {
	switch reason {
	case lnrpc.PaymentFailureReason_FAILURE_REASON_INSUFFICIENT_BALANCE:
		return "insufficient funds"
	case lnrpc.PaymentFailureReason_FAILURE_REASON_NO_ROUTE:
		return "no route to destination"
	case lnrpc.PaymentFailureReason_FAILURE_REASON_TIMEOUT:
		return "payment timed out"
	case lnrpc.PaymentFailureReason_FAILURE_REASON_INCORRECT_PAYMENT_DETAILS:
		return "incorrect payment details"
	default:
		return "payment failed"
	}
}

// SubscribeBalance emulates a balance stream by polling ChannelBalance
// and reporting changes.
func (l *LND) SubscribeBalance(ctx context.Context, onBalance func(msat int64)) (func(), error) {
	pollCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(l.balancePoll)
		defer ticker.Stop()

		last := int64(-1)
		for {
			resp, err := l.ln.ChannelBalance(pollCtx, &lnrpc.ChannelBalanceRequest{})
			if err == nil && resp.LocalBalance != nil && pollCtx.Err() == nil {
				msat := int64(resp.LocalBalance.Msat)
				if msat != last {
					last = msat
					onBalance(msat)
				}
			}

			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}
