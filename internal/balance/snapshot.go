package balance

import (
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable set of balances keyed by asset symbol.
type Snapshot struct {
	values map[string]decimal.Decimal
}

func NewSnapshot(values map[string]decimal.Decimal) *Snapshot {
	copied := make(map[string]decimal.Decimal, len(values))
	for asset, v := range values {
		copied[asset] = v
	}
	return &Snapshot{values: copied}
}

// Get is case-sensitive; a missing asset reads as zero.
func (s *Snapshot) Get(asset string) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	v, ok := s.values[asset]
	if !ok {
		return decimal.Zero
	}
	return v
}

func (s *Snapshot) Assets() []string {
	if s == nil {
		return nil
	}
	assets := make([]string, 0, len(s.values))
	for asset := range s.values {
		assets = append(assets, asset)
	}
	return assets
}
