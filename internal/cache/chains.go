// Package cache fronts the chain summary reads with Redis. The database
// remains the source of truth; a cache miss or a Redis outage falls back to
// the store transparently.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sbj175/trade-journal/internal/models"
)

const chainTTL = 5 * time.Minute

// ChainCache is a read-through cache of chain summaries per user. Each user
// has a version counter; invalidation bumps it, orphaning every cached
// filter combination at once.
type ChainCache struct {
	client *redis.Client
}

// NewChainCache connects to Redis. Returns nil when addr is empty so callers
// can treat the cache as optional.
func NewChainCache(addr, password string, db int) *ChainCache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &ChainCache{client: client}
}

// GetChains returns cached summaries for the filter, or ok=false on miss.
func (c *ChainCache) GetChains(ctx context.Context, userID, account, underlying string) ([]*models.ChainSummary, bool) {
	if c == nil {
		return nil, false
	}

	key, err := c.chainKey(ctx, userID, account, underlying)
	if err != nil {
		return nil, false
	}

	blob, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("WARN: chain cache read failed: %v", err)
		}
		return nil, false
	}

	var summaries []*models.ChainSummary
	if err := json.Unmarshal(blob, &summaries); err != nil {
		log.Printf("WARN: chain cache payload corrupt, dropping: %v", err)
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return summaries, true
}

// SetChains stores summaries for the filter.
func (c *ChainCache) SetChains(ctx context.Context, userID, account, underlying string, summaries []*models.ChainSummary) {
	if c == nil {
		return
	}

	key, err := c.chainKey(ctx, userID, account, underlying)
	if err != nil {
		return
	}

	blob, err := json.Marshal(summaries)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, blob, chainTTL).Err(); err != nil {
		log.Printf("WARN: chain cache write failed: %v", err)
	}
}

// Invalidate drops every cached chain read for the user by bumping the
// user's cache version.
func (c *ChainCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	if err := c.client.Incr(ctx, versionKey(userID)).Err(); err != nil {
		log.Printf("WARN: chain cache invalidation failed: %v", err)
	}
}

// Close releases the Redis connection.
func (c *ChainCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *ChainCache) chainKey(ctx context.Context, userID, account, underlying string) (string, error) {
	ver, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("chains:%s:%d:%s:%s", userID, ver, account, underlying), nil
}

func versionKey(userID string) string {
	return "chains:ver:" + userID
}
