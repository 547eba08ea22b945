package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// poolsKey stores the latest yield snapshot as a JSON blob with a TTL, so a
// burst of recommend/deposit calls reuses one upstream fetch.
const poolsKey = "yields:pools"

// PoolCache implements domain.PoolCache using a single Redis string key.
type PoolCache struct {
	rdb *redis.Client
}

// NewPoolCache creates a PoolCache backed by the given Client.
func NewPoolCache(c *Client) *PoolCache {
	return &PoolCache{rdb: c.Underlying()}
}

// SetPools stores the snapshot with the given TTL.
func (pc *PoolCache) SetPools(ctx context.Context, pools []domain.Pool, ttl time.Duration) error {
	payload, err := json.Marshal(pools)
	if err != nil {
		return fmt.Errorf("redis: marshal pools: %w", err)
	}
	if err := pc.rdb.Set(ctx, poolsKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set pools: %w", err)
	}
	return nil
}

// GetPools returns the cached snapshot, or domain.ErrNotFound when the key
// is missing or expired.
func (pc *PoolCache) GetPools(ctx context.Context) ([]domain.Pool, error) {
	payload, err := pc.rdb.Get(ctx, poolsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get pools: %w", err)
	}

	var pools []domain.Pool
	if err := json.Unmarshal(payload, &pools); err != nil {
		return nil, fmt.Errorf("redis: unmarshal pools: %w", err)
	}
	return pools, nil
}

// Compile-time interface check.
var _ domain.PoolCache = (*PoolCache)(nil)
