package balance

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Holder is a BalanceSource whose snapshot can be swapped when the wallet
// reports new balances. Readers always see a whole snapshot.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

func NewHolder(s *Snapshot) *Holder {
	h := &Holder{}
	h.Store(s)
	return h
}

func (h *Holder) Store(s *Snapshot) {
	if s == nil {
		s = NewSnapshot(nil)
	}
	h.current.Store(s)
}

func (h *Holder) Get(asset string) decimal.Decimal {
	return h.current.Load().Get(asset)
}
