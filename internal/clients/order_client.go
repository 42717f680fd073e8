package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chilly266futon/orderComposer/internal/domain"
	"github.com/chilly266futon/orderComposer/internal/dto/order"
	"github.com/chilly266futon/orderComposer/internal/mappers"
)

const ordersPath = "/orders"

type OrderClient struct {
	api *apiClient
}

func NewOrderClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*OrderClient, error) {
	api, err := newAPIClient("order-api", cfg, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create order client: %w", err)
	}
	return &OrderClient{api: api}, nil
}

// CreateOrder sends the order. A business rejection is returned in
// OrderResult.Error, with a nil error, whatever the HTTP status; the error
// return is reserved for requests that did not complete.
func (c *OrderClient) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	var out order.CreateOrderResponse

	headers := map[string]string{"Idempotency-Key": uuid.NewString()}

	err := c.api.post(ctx, ordersPath, mappers.OrderRequestToDTO(req), headers, func(resp apiResponse) error {
		decodeErr := json.Unmarshal(resp.body, &out)
		if resp.ok() {
			if decodeErr != nil {
				return fmt.Errorf("decode order response: %w", decodeErr)
			}
			return nil
		}
		if decodeErr == nil && out.Error != "" {
			return nil
		}
		return unexpectedStatus(resp)
	})
	if err != nil {
		return domain.OrderResult{}, err
	}

	c.api.logger.Debug("order response",
		zap.Bool("success", out.Success),
		zap.String("error", out.Error),
	)

	return mappers.OrderResultFromDTO(out), nil
}
