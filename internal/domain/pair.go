package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TradingPair is an immutable snapshot of the selected pair. Asset symbols
// are kept as the pricing API returns them (lower-case by convention).
type TradingPair struct {
	BaseAsset  string
	QuoteAsset string
	AvgPrice   decimal.Decimal
	Change24h  decimal.Decimal
}

func (p TradingPair) IsSelected() bool {
	return p.BaseAsset != "" && p.QuoteAsset != ""
}

// Oriented returns the [from, to] ordering sent to the pricing and order
// APIs: buy keeps [base, quote], sell swaps it.
func (p TradingPair) Oriented(side Side) [2]string {
	if side == SideSell {
		return [2]string{p.QuoteAsset, p.BaseAsset}
	}
	return [2]string{p.BaseAsset, p.QuoteAsset}
}

// AmountAsset is the asset the amount is typed in: quote for buy, base for sell.
func (p TradingPair) AmountAsset(side Side) string {
	if side == SideSell {
		return p.BaseAsset
	}
	return p.QuoteAsset
}

// EstimateAsset is the asset of the derived estimate, opposite to AmountAsset.
func (p TradingPair) EstimateAsset(side Side) string {
	if side == SideSell {
		return p.QuoteAsset
	}
	return p.BaseAsset
}

func (p TradingPair) String() string {
	return strings.ToUpper(p.BaseAsset) + "/" + strings.ToUpper(p.QuoteAsset)
}
