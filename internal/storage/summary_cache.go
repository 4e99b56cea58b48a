package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/types"
)

// SummaryCache caches portfolio summaries per account with a TTL. A cache
// miss is reported as (nil, false, nil), not an error.
type SummaryCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewSummaryCache creates a new summary cache
func NewSummaryCache(redis *RedisCache, ttl time.Duration) *SummaryCache {
	return &SummaryCache{redis: redis, ttl: ttl}
}

func summaryKey(account common.Address) string {
	return fmt.Sprintf("summary:%s", strings.ToLower(account.Hex()))
}

// Get retrieves a cached summary
func (c *SummaryCache) Get(ctx context.Context, account common.Address) ([]types.AssetPosition, bool, error) {
	raw, err := c.redis.Get(ctx, summaryKey(account))
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.NewCacheError("get summary", err)
	}

	var positions []types.AssetPosition
	if err := json.Unmarshal([]byte(raw), &positions); err != nil {
		// A corrupt entry counts as a miss; it gets overwritten on the
		// next Set
		return nil, false, nil
	}
	return positions, true, nil
}

// Set stores a summary under the configured TTL
func (c *SummaryCache) Set(ctx context.Context, account common.Address, positions []types.AssetPosition) error {
	data, err := json.Marshal(positions)
	if err != nil {
		return errors.NewCacheError("marshal summary", err)
	}
	if err := c.redis.Set(ctx, summaryKey(account), data, c.ttl); err != nil {
		return errors.NewCacheError("set summary", err)
	}
	return nil
}

// Invalidate drops the cached summary for an account. Every value-moving
// operation invalidates before returning.
func (c *SummaryCache) Invalidate(ctx context.Context, account common.Address) error {
	if err := c.redis.Del(ctx, summaryKey(account)); err != nil {
		return errors.NewCacheError("invalidate summary", err)
	}
	return nil
}
