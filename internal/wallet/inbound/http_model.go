package inbound

import (
	"net/http"

	"github.com/shandysiswandi/gosats/internal/wallet/entity"
)

type Transaction struct {
	ID           string              `json:"id"`
	Kind         entity.TxKind       `json:"kind"`
	Amount       int64               `json:"amount"`
	Timestamp    int64               `json:"timestamp"`
	Invoice      string              `json:"invoice"`
	ReceiveState entity.ReceiveState `json:"receive_state,omitempty"`
	CancelReason string              `json:"cancel_reason,omitempty"`
	Preimage     string              `json:"preimage,omitempty"`
	FeeMsat      int64               `json:"fee_msat,omitempty"`
}

type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Sent         int           `json:"sent"`
	Received     int           `json:"received"`
}

type BalanceResponse struct {
	Msat int64 `json:"msat"`
	Sats int64 `json:"sats"`
}

type CreateInvoiceRequest struct {
	AmountSat int64 `json:"amount_sat"`
}

type CreateInvoiceResponse struct {
	OperationID string              `json:"operation_id"`
	Invoice     string              `json:"invoice"`
	State       entity.ReceiveState `json:"state"`
}

func (CreateInvoiceResponse) StatusCode() int {
	return http.StatusCreated
}

func (CreateInvoiceResponse) Message() string {
	return "invoice created"
}

type ReceiveStateResponse struct {
	Invoice string              `json:"invoice"`
	Paid    bool                `json:"paid"`
	Error   string              `json:"error,omitempty"`
	State   entity.ReceiveState `json:"state,omitempty"`
}

type PayInvoiceRequest struct {
	Invoice string `json:"invoice"`
}

type PayInvoiceResponse struct {
	OperationID string `json:"operation_id"`
	Amount      int64  `json:"amount"`
	FeeMsat     int64  `json:"fee_msat"`
	Preimage    string `json:"preimage,omitempty"`
}

func (PayInvoiceResponse) StatusCode() int {
	return http.StatusCreated
}

func (PayInvoiceResponse) Message() string {
	return "payment sent"
}

type SendStateResponse struct {
	Sending bool   `json:"sending"`
	Error   string `json:"error,omitempty"`
}

func toHTTPTransaction(tx entity.Transaction) Transaction {
	return Transaction{
		ID:           tx.ID,
		Kind:         tx.Kind,
		Amount:       tx.Amount,
		Timestamp:    tx.Timestamp,
		Invoice:      tx.Invoice,
		ReceiveState: tx.ReceiveState,
		CancelReason: tx.CancelReason,
		Preimage:     tx.Preimage,
		FeeMsat:      tx.FeeMsat,
	}
}
