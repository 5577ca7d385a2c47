package inbound

import (
	"context"

	"github.com/shandysiswandi/gosats/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosats/internal/wallet/entity"
	"github.com/shandysiswandi/gosats/internal/wallet/flow"
)

type ledger interface {
	Transactions() []entity.Transaction
}

type receiver interface {
	CreateInvoice(ctx context.Context, amountSat int64) (entity.Transaction, error)
	Snapshot() flow.ReceiveSnapshot
	ResetState()
}

type sender interface {
	PayInvoice(ctx context.Context, invoice string) (entity.Transaction, error)
	Snapshot() flow.SendSnapshot
	ResetState()
}

type balance interface {
	CurrentMsat() int64
}

type Dependency struct {
	Ledger  ledger
	Receive receiver
	Send    sender
	Balance balance
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, dep Dependency) {
	end := &HTTPEndpoint{
		ledger:  dep.Ledger,
		receive: dep.Receive,
		send:    dep.Send,
		balance: dep.Balance,
	}

	r.GET("/transactions", end.Transactions)
	r.GET("/balance", end.Balance)

	r.POST("/receive/invoices", end.CreateInvoice)
	r.GET("/receive", end.ReceiveState)
	r.POST("/receive/reset", end.ResetReceive)

	r.POST("/send/payments", end.PayInvoice)
	r.GET("/send", end.SendState)
	r.POST("/send/reset", end.ResetSend)
}
