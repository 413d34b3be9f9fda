package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// dailyTTL keeps yesterday's total around long enough to be inspected.
const dailyTTL = 48 * time.Hour

// UsageStore keeps the weighted daily total in a per-date counter.
type UsageStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// UsageOption configures UsageStore.
type UsageOption func(*UsageStore)

// WithKeyPrefix sets the key prefix (default "sheetsync:quota:daily:").
func WithKeyPrefix(prefix string) UsageOption {
	return func(s *UsageStore) { s.keyPrefix = prefix }
}

// NewUsageStore creates a Redis-backed daily usage store.
func NewUsageStore(client redis.Cmdable, opts ...UsageOption) *UsageStore {
	s := &UsageStore{
		client:    client,
		keyPrefix: "sheetsync:quota:daily:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UsageStore) dayKey(day string) string {
	return s.keyPrefix + day
}

// LoadDaily returns the units recorded for day (YYYY-MM-DD), or 0 if none.
func (s *UsageStore) LoadDaily(ctx context.Context, day string) (int64, error) {
	units, err := s.client.Get(ctx, s.dayKey(day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get daily usage: %w", err)
	}
	return units, nil
}

// AddDaily increments the units recorded for day.
func (s *UsageStore) AddDaily(ctx context.Context, day string, units int64) error {
	key := s.dayKey(day)

	pipe := s.client.TxPipeline()
	pipe.IncrBy(ctx, key, units)
	pipe.Expire(ctx, key, dailyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incr daily usage: %w", err)
	}
	return nil
}
