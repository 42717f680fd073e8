package balance

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const keyPrefix = "balances:"

// RedisLoader reads per-user balances kept by the wallet service in a hash
// "balances:<user>" of asset -> amount.
type RedisLoader struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisLoader(addr, password string, db int, logger *zap.Logger) *RedisLoader {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisLoader{client: client, logger: logger}
}

func (l *RedisLoader) Load(ctx context.Context, userID string) (*Snapshot, error) {
	raw, err := l.client.HGetAll(ctx, keyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}

	values := make(map[string]decimal.Decimal, len(raw))
	for asset, s := range raw {
		v, err := decimal.NewFromString(s)
		if err != nil {
			l.logger.Warn("skipping malformed balance",
				zap.String("user_id", userID),
				zap.String("asset", asset),
				zap.String("value", s),
			)
			continue
		}
		values[asset] = v
	}

	return NewSnapshot(values), nil
}

func (l *RedisLoader) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLoader) Close() error {
	return l.client.Close()
}
