package rest

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chilly266futon/orderComposer/internal/composer"
	"github.com/chilly266futon/orderComposer/internal/domain"
	"github.com/chilly266futon/orderComposer/internal/service"
)

type pairDTO struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	Change24h decimal.Decimal `json:"change_24h"`
}

func (p pairDTO) toDomain() domain.TradingPair {
	return domain.TradingPair{
		BaseAsset:  p.Base,
		QuoteAsset: p.Quote,
		AvgPrice:   p.AvgPrice,
		Change24h:  p.Change24h,
	}
}

type errorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type draftDTO struct {
	Version       uint64           `json:"version"`
	Pair          pairDTO          `json:"pair"`
	Side          string           `json:"side"`
	OrderType     string           `json:"order_type"`
	Amount        decimal.Decimal  `json:"amount"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Estimate      decimal.Decimal  `json:"estimate"`
	AmountAsset   string           `json:"amount_asset"`
	EstimateAsset string           `json:"estimate_asset"`
	Estimating    bool             `json:"estimating"`
	Submitting    bool             `json:"submitting"`
	Error         *errorDTO        `json:"error,omitempty"`
}

type viewDTO struct {
	SessionID string          `json:"session_id"`
	Draft     draftDTO        `json:"draft"`
	Balance   decimal.Decimal `json:"balance"`
}

type submitResponse struct {
	Outcome string  `json:"outcome"`
	View    viewDTO `json:"view"`
}

type openSessionRequest struct {
	UserID string  `json:"user_id"`
	Pair   pairDTO `json:"pair"`
}

// intentRequest carries the union of intent arguments.
type intentRequest struct {
	Side      string           `json:"side"`
	OrderType string           `json:"order_type"`
	Amount    *decimal.Decimal `json:"amount"`
	Text      string           `json:"text"`
	Price     decimal.Decimal  `json:"price"`
	Percent   int              `json:"percent"`
	Pair      *pairDTO         `json:"pair"`
}

// signal is a message on the session's WebSocket stream.
type signal struct {
	Type  string    `json:"type"`
	Draft *draftDTO `json:"draft,omitempty"`
	Style string    `json:"style,omitempty"`
}

func draftFromSnapshot(s composer.Snapshot) draftDTO {
	d := draftDTO{
		Version: s.Version,
		Pair: pairDTO{
			Base:      s.Pair.BaseAsset,
			Quote:     s.Pair.QuoteAsset,
			AvgPrice:  s.Pair.AvgPrice,
			Change24h: s.Pair.Change24h,
		},
		Side:          s.Draft.Side.String(),
		OrderType:     s.Draft.OrderType.String(),
		Amount:        s.Draft.Amount,
		Price:         s.Draft.Price,
		Estimate:      s.Draft.Estimate,
		AmountAsset:   strings.ToUpper(s.AmountAsset),
		EstimateAsset: strings.ToUpper(s.EstimateAsset),
		Estimating:    s.Estimating,
		Submitting:    s.Submitting,
	}
	if s.Draft.LastError != domain.ErrorNone {
		d.Error = &errorDTO{
			Code:    string(s.Draft.LastError),
			Message: ErrorMessage(s.Draft.LastError),
		}
	}
	return d
}

func viewFromService(v service.View) viewDTO {
	return viewDTO{
		SessionID: v.SessionID,
		Draft:     draftFromSnapshot(v.Snapshot),
		Balance:   v.Balance,
	}
}
