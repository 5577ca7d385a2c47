package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shandysiswandi/gosats/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosats/internal/wallet/entity"
)

type HTTPEndpoint struct {
	ledger  ledger
	receive receiver
	send    sender
	balance balance
}

func (h *HTTPEndpoint) Transactions(ctx context.Context, r *http.Request) (any, error) {
	txs := h.ledger.Transactions()

	out := make([]Transaction, 0, len(txs))
	sent, received := 0, 0
	for _, tx := range txs {
		switch tx.Kind {
		case entity.TxKindSend:
			sent++
		case entity.TxKindReceive:
			received++
		}
		out = append(out, toHTTPTransaction(tx))
	}

	return TransactionsResponse{
		Transactions: out,
		Total:        len(out),
		Sent:         sent,
		Received:     received,
	}, nil
}

func (h *HTTPEndpoint) Balance(ctx context.Context, r *http.Request) (any, error) {
	msat := h.balance.CurrentMsat()

	return BalanceResponse{
		Msat: msat,
		Sats: msat / 1000,
	}, nil
}

func (h *HTTPEndpoint) CreateInvoice(ctx context.Context, r *http.Request) (any, error) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}

	// validated at the boundary so the controller never sees garbage
	if req.AmountSat <= 0 {
		return nil, pkgerror.NewInvalidInput(errors.New("amount_sat must be a positive integer"))
	}

	tx, err := h.receive.CreateInvoice(ctx, req.AmountSat)
	if err != nil {
		return nil, err
	}

	return CreateInvoiceResponse{
		OperationID: tx.ID,
		Invoice:     tx.Invoice,
		State:       tx.ReceiveState,
	}, nil
}

func (h *HTTPEndpoint) ReceiveState(ctx context.Context, r *http.Request) (any, error) {
	snap := h.receive.Snapshot()

	return ReceiveStateResponse{
		Invoice: snap.Invoice,
		Paid:    snap.Paid,
		Error:   snap.Err,
		State:   snap.State,
	}, nil
}

func (h *HTTPEndpoint) ResetReceive(ctx context.Context, r *http.Request) (any, error) {
	h.receive.ResetState()
	return nil, nil
}

func (h *HTTPEndpoint) PayInvoice(ctx context.Context, r *http.Request) (any, error) {
	var req PayInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}

	if strings.TrimSpace(req.Invoice) == "" {
		return nil, pkgerror.NewInvalidInput(errors.New("invoice is required"))
	}

	tx, err := h.send.PayInvoice(ctx, req.Invoice)
	if err != nil {
		return nil, err
	}

	return PayInvoiceResponse{
		OperationID: tx.ID,
		Amount:      tx.Amount,
		FeeMsat:     tx.FeeMsat,
		Preimage:    tx.Preimage,
	}, nil
}

func (h *HTTPEndpoint) SendState(ctx context.Context, r *http.Request) (any, error) {
	snap := h.send.Snapshot()

	return SendStateResponse{
		Sending: snap.Sending,
		Error:   snap.Err,
	}, nil
}

func (h *HTTPEndpoint) ResetSend(ctx context.Context, r *http.Request) (any, error) {
	h.send.ResetState()
	return nil, nil
}
