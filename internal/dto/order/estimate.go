package order

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type EstimateRequest struct {
	Type   string      `json:"type"`
	Amount json.Number `json:"amount"`
	Pair   [2]string   `json:"pair"`
}

// EstimateResponse accepts out both as a JSON number and as a string.
type EstimateResponse struct {
	Out decimal.Decimal `json:"out"`
}
