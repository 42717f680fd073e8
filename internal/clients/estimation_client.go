package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chilly266futon/orderComposer/internal/domain"
	"github.com/chilly266futon/orderComposer/internal/dto/order"
	"github.com/chilly266futon/orderComposer/internal/mappers"
)

const estimatePath = "/exchanges/estimate"

type EstimationClient struct {
	api *apiClient
}

func NewEstimationClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*EstimationClient, error) {
	api, err := newAPIClient("pricing-api", cfg, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimation client: %w", err)
	}
	return &EstimationClient{api: api}, nil
}

// Estimate returns the expected counter-amount. Every failure wraps
// domain.ErrTransport.
func (c *EstimationClient) Estimate(ctx context.Context, req domain.EstimateRequest) (decimal.Decimal, error) {
	var out order.EstimateResponse

	err := c.api.post(ctx, estimatePath, mappers.EstimateRequestToDTO(req), nil, func(resp apiResponse) error {
		if !resp.ok() {
			return unexpectedStatus(resp)
		}
		if err := json.Unmarshal(resp.body, &out); err != nil {
			return fmt.Errorf("decode estimate: %w", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return out.Out, nil
}
