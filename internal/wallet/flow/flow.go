package flow

import (
	"errors"
	"time"

	"github.com/shandysiswandi/gosats/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosats/internal/wallet/entity"
)

// Ledger is the slice of the state store that flow controllers are
// allowed to use. Controllers submit records; they never mutate ledger
// entries directly.
type Ledger interface {
	Append(tx entity.Transaction) error
	Update(tx entity.Transaction) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func mapLedgerErr(err error) error {
	switch {
	case errors.Is(err, pkgerror.ErrDuplicateID):
		return pkgerror.NewBusiness("transaction already exists", pkgerror.CodeConflict)
	case errors.Is(err, pkgerror.ErrNotFound):
		return pkgerror.NewBusiness("transaction not found", pkgerror.CodeNotFound)
	}

	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}

	return pkgerror.NewServer(err)
}
