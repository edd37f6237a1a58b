package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

const defaultPrefix = "billing:stats"

// StatsCache keeps monthly collection stats in Redis, one key per year.
type StatsCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

var _ ports.StatsCache = (*StatsCache)(nil)

func NewStatsCache(client *redis.Client, ttl time.Duration, prefix string) *StatsCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &StatsCache{redis: client, ttl: ttl, prefix: prefix}
}

func (c *StatsCache) key(year int) string {
	return fmt.Sprintf("%s:monthly:%d", c.prefix, year)
}

func (c *StatsCache) GetMonthly(ctx context.Context, year int) ([]models.MonthlyStat, bool, error) {
	raw, err := c.redis.Get(ctx, c.key(year)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stats []models.MonthlyStat
	if err := json.Unmarshal(raw, &stats); err != nil {
		// unreadable entry; drop it and report a miss
		_ = c.redis.Del(ctx, c.key(year)).Err()
		return nil, false, nil
	}
	return stats, true, nil
}

func (c *StatsCache) SetMonthly(ctx context.Context, year int, stats []models.MonthlyStat) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.key(year), raw, c.ttl).Err()
}

// Invalidate removes every cached year.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	iter := c.redis.Scan(ctx, 0, c.prefix+":monthly:*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}
