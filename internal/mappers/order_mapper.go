package mappers

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/chilly266futon/orderComposer/internal/domain"
	"github.com/chilly266futon/orderComposer/internal/dto/order"
)

func SideToDTO(s domain.Side) string {
	switch s {
	case domain.SideSell:
		return order.SideSell
	default:
		return order.SideBuy
	}
}

func OrderRequestToDTO(req domain.OrderRequest) order.CreateOrderRequest {
	dto := order.CreateOrderRequest{
		Type:   SideToDTO(req.Side),
		Amount: numberFromDecimal(req.Amount),
		Pair:   req.Pair,
	}
	if req.Price != nil {
		price := numberFromDecimal(*req.Price)
		dto.Price = &price
	}
	return dto
}

// OrderResultFromDTO keeps the error code verbatim so the presentation
// layer can map it to a message.
func OrderResultFromDTO(resp order.CreateOrderResponse) domain.OrderResult {
	return domain.OrderResult{
		Success: resp.Success,
		Error:   domain.ErrorKind(resp.Error),
	}
}

func EstimateRequestToDTO(req domain.EstimateRequest) order.EstimateRequest {
	return order.EstimateRequest{
		Type:   SideToDTO(req.Side),
		Amount: numberFromDecimal(req.Amount),
		Pair:   req.Pair,
	}
}

func numberFromDecimal(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
