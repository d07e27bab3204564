package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deeptrack/internal/apikeys/models"
)

const keyPrefix = "deeptrack:apikeys:"

// RedisCache shares key lists across BFF replicas so create/revoke on one
// instance is visible on all.
type RedisCache struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, companyID string) ([]models.APIKey, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+companyID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached api keys: %w", err)
	}
	var keys []models.APIKey
	if err := json.Unmarshal(raw, &keys); err != nil {
		_ = c.client.Del(ctx, keyPrefix+companyID).Err()
		return nil, false, nil
	}
	return keys, true, nil
}

func (c *RedisCache) Set(ctx context.Context, companyID string, keys []models.APIKey, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("marshal api keys: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+companyID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache api keys: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, companyID string) error {
	if err := c.client.Del(ctx, keyPrefix+companyID).Err(); err != nil {
		return fmt.Errorf("invalidate api keys: %w", err)
	}
	return nil
}
