package state

import "sync/atomic"

// Balance holds the latest engine-reported balance in millisats. The
// engine balance subscription writes it; the UI surface reads it.
type Balance struct {
	msat atomic.Int64
}

func NewBalance() *Balance {
	return &Balance{}
}

func (b *Balance) Set(msat int64) {
	b.msat.Store(msat)
}

func (b *Balance) CurrentMsat() int64 {
	return b.msat.Load()
}
