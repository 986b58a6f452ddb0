// Package listcache caches shared list snapshots in Redis keyed by token.
package listcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

// Store is the subset of the Redis client the cache needs. Both the plain
// client wrapper and the instrumented one satisfy it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Cache sits in front of the share token store on the redeem read path. A nil
// cache (or nil store) is a no-op, so wiring stays optional.
type Cache struct {
	store Store
	ttl   time.Duration
}

// NewCache constructs a snapshot cache with the given TTL.
func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Get fetches a cached snapshot if present. A miss returns (nil, nil).
func (c *Cache) Get(ctx context.Context, token string) (*domain.ShoppingList, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}

	data, err := c.store.Get(ctx, cacheKey(token))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached snapshot: %w", err)
	}

	var list domain.ShoppingList
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}

	return &list, nil
}

// Set stores the snapshot under its token. Snapshots are immutable, so the
// cache never needs invalidation before the TTL runs out.
func (c *Cache) Set(ctx context.Context, token string, list *domain.ShoppingList) error {
	if c == nil || c.store == nil || list == nil {
		return nil
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode snapshot for cache: %w", err)
	}

	if err := c.store.Set(ctx, cacheKey(token), payload, c.ttl); err != nil {
		return fmt.Errorf("set cached snapshot: %w", err)
	}

	return nil
}

func cacheKey(token string) string {
	return fmt.Sprintf("share:snapshot:%s", token)
}
