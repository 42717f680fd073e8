package composer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chilly266futon/orderComposer/internal/domain"
)

// BalanceSource is a read-only view of the user's balances keyed by asset
// symbol. A missing asset reads as zero.
type BalanceSource interface {
	Get(asset string) decimal.Decimal
}

type EstimationClient interface {
	Estimate(ctx context.Context, req domain.EstimateRequest) (decimal.Decimal, error)
}

// OrderClient returns an error only when the request did not complete.
// Business rejections come back in OrderResult.Error.
type OrderClient interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

type HapticFeedback interface {
	ImpactOccurred(style string)
}

const HapticLight = "light"

type nopHaptic struct{}

func (nopHaptic) ImpactOccurred(string) {}

type noBalances struct{}

func (noBalances) Get(string) decimal.Decimal { return decimal.Zero }

type Config struct {
	// Step is the increment/decrement unit of the amount field.
	Step            decimal.Decimal
	EstimateTimeout time.Duration
	SubmitTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Step:            decimal.NewFromInt(1),
		EstimateTimeout: 10 * time.Second,
		SubmitTimeout:   30 * time.Second,
	}
}

type Deps struct {
	Balances  BalanceSource
	Estimator EstimationClient
	Orders    OrderClient
	Haptic    HapticFeedback
	Observer  Observer
}
