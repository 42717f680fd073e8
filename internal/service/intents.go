package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chilly266futon/orderComposer/internal/domain"
)

type IntentKind string

const (
	IntentSetSide      IntentKind = "side"
	IntentSetOrderType IntentKind = "order_type"
	IntentSetAmount    IntentKind = "amount"
	IntentIncrement    IntentKind = "increment"
	IntentDecrement    IntentKind = "decrement"
	IntentQuickPick    IntentKind = "quick_pick"
	IntentSetPrice     IntentKind = "price"
	IntentSetPair      IntentKind = "pair"
	IntentReset        IntentKind = "reset"
)

// Intent is a user action on the panel. Only the fields relevant to Kind
// are read.
type Intent struct {
	Kind      IntentKind
	Side      domain.Side
	OrderType domain.OrderType
	// Amount wins over AmountText when both are set.
	Amount     *decimal.Decimal
	AmountText string
	Price      decimal.Decimal
	QuickPick  domain.QuickPick
	Pair       domain.TradingPair
}

// Apply forwards the intent to the session's composer. Estimates started
// by the intent complete asynchronously and are pushed through the Notifier.
func (s *Service) Apply(id string, in Intent) (View, error) {
	session, err := s.session(id)
	if err != nil {
		return View{}, err
	}
	session.Touch(time.Now())
	c := session.Composer

	switch in.Kind {
	case IntentSetSide:
		c.SetSide(in.Side)
	case IntentSetOrderType:
		c.SetOrderType(in.OrderType)
	case IntentSetAmount:
		if in.Amount != nil {
			c.SetAmount(*in.Amount)
		} else if _, err := c.SetAmountInput(in.AmountText); err != nil {
			return View{}, err
		}
	case IntentIncrement:
		c.IncrementAmount()
	case IntentDecrement:
		c.DecrementAmount()
	case IntentQuickPick:
		if _, err := c.SetAmountFromBalancePercentage(in.QuickPick); err != nil {
			return View{}, err
		}
	case IntentSetPrice:
		c.SetPrice(in.Price)
	case IntentSetPair:
		c.SetPair(in.Pair)
	case IntentReset:
		c.Reset()
	default:
		return View{}, ErrUnknownIntent
	}

	return s.view(session), nil
}
