package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

type statsCache struct {
	client redislib.Cmdable
	prefix string
	ttl    time.Duration
}

// NewStatsCache stores monthly completion stats as JSON under stats:monthly:<userID>.
func NewStatsCache(client redislib.Cmdable, ttl time.Duration) repository.StatsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &statsCache{client: client, prefix: "stats:monthly:", ttl: ttl}
}

func (c *statsCache) Get(ctx context.Context, userID domain.ID) ([]domain.MonthlyCompleted, bool, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redislib.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.StoreFailure("stats_cache.get", err)
	}

	var stats []domain.MonthlyCompleted
	if err := json.Unmarshal(raw, &stats); err != nil {
		// a corrupt entry is treated as a miss and overwritten by the next Set
		return nil, false, nil
	}
	return stats, true, nil
}

func (c *statsCache) Set(ctx context.Context, userID domain.ID, stats []domain.MonthlyCompleted) error {
	if stats == nil {
		stats = []domain.MonthlyCompleted{}
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return domain.StoreFailure("stats_cache.encode", err)
	}
	if err := c.client.Set(ctx, c.key(userID), payload, c.ttl).Err(); err != nil {
		return domain.StoreFailure("stats_cache.set", err)
	}
	return nil
}

func (c *statsCache) Invalidate(ctx context.Context, userIDs ...domain.ID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if !id.IsZero() {
			keys = append(keys, c.key(id))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return domain.StoreFailure("stats_cache.invalidate", err)
	}
	return nil
}

func (c *statsCache) key(userID domain.ID) string {
	return c.prefix + userID.String()
}
