package clients

import (
	"time"

	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// Attempts is the number of consecutive failures that opens the breaker.
	Attempts uint32
}

type breakerWrapper struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(name string, cfg BreakerConfig) *breakerWrapper {
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 5
	}

	return &breakerWrapper{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= attempts
			},
		}),
	}
}

func (b *breakerWrapper) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
