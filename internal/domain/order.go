package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DraftOrder is the order being composed in the trading panel.
type DraftOrder struct {
	Side      Side
	OrderType OrderType
	Amount    decimal.Decimal
	// Price is nil until the user enters one.
	Price     *decimal.Decimal
	Estimate  decimal.Decimal
	LastError ErrorKind
}

func NewDraftOrder() DraftOrder {
	return DraftOrder{
		Side:      SideBuy,
		OrderType: OrderTypeMarket,
		Amount:    decimal.Zero,
		Estimate:  decimal.Zero,
	}
}

// Validate checks the draft before anything is sent to the order API.
func (d DraftOrder) Validate(pair TradingPair) ErrorKind {
	if !pair.IsSelected() {
		return ErrorPairNotSelected
	}
	if !d.Amount.IsPositive() {
		return ErrorInvalidAmount
	}
	if d.OrderType == OrderTypeLimit {
		if d.Price == nil {
			return ErrorPriceRequired
		}
		if !d.Price.IsPositive() {
			return ErrorInvalidPrice
		}
	}
	return ErrorNone
}

// Request builds the order request. Price is only carried for limit orders.
func (d DraftOrder) Request(pair TradingPair) OrderRequest {
	req := OrderRequest{
		Side:   d.Side,
		Amount: d.Amount,
		Pair:   pair.Oriented(d.Side),
	}
	if d.OrderType == OrderTypeLimit && d.Price != nil {
		price := *d.Price
		req.Price = &price
	}
	return req
}

type OrderRequest struct {
	Side   Side
	Amount decimal.Decimal
	Price  *decimal.Decimal
	Pair   [2]string
}

type EstimateRequest struct {
	Side   Side
	Amount decimal.Decimal
	Pair   [2]string
}

// OrderResult is what the order API reports. Neither field set means the
// outcome is unknown.
type OrderResult struct {
	Success bool
	Error   ErrorKind
}

// QuickPick is a share of the available balance, in percent.
type QuickPick int

const (
	QuickPick25  QuickPick = 25
	QuickPick50  QuickPick = 50
	QuickPick75  QuickPick = 75
	QuickPick100 QuickPick = 100
)

func (q QuickPick) Fraction() (decimal.Decimal, error) {
	switch q {
	case QuickPick25, QuickPick50, QuickPick75, QuickPick100:
		return decimal.New(int64(q), -2), nil
	default:
		return decimal.Zero, ErrInvalidPercentage
	}
}

// ParseAmountInput parses the amount field text, which the panel renders
// with a trailing " <UNIT>" suffix.
func ParseAmountInput(text, unit string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.ToLower(text))
	if unit != "" {
		s = strings.TrimSpace(strings.TrimSuffix(s, strings.ToLower(unit)))
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmountInput
	}
	return v, nil
}
