package order

import "encoding/json"

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// CreateOrderRequest is the body of POST /orders. Price is present only
// for limit orders.
type CreateOrderRequest struct {
	Type   string       `json:"type"`
	Amount json.Number  `json:"amount"`
	Price  *json.Number `json:"price,omitempty"`
	Pair   [2]string    `json:"pair"`
}

type CreateOrderResponse struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}
