package authz

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Catalog is an optional read-through cache of the permission catalog
// keyed by name. The engine is correct with no catalog at all; every
// implementation may lose its contents at any time.
type Catalog interface {
	// Get returns the cached catalog, or nil when the cache is cold.
	Get(ctx context.Context) (map[string]Permission, error)
	// Invalidate clears the cached catalog.
	Invalidate(ctx context.Context) error
}

// NopCatalog is a pass-through catalog holding nothing.
type NopCatalog struct{}

// Get always reports a cold cache.
func (NopCatalog) Get(ctx context.Context) (map[string]Permission, error) { return nil, nil }

// Invalidate does nothing.
func (NopCatalog) Invalidate(ctx context.Context) error { return nil }

const catalogKey = "authz:permission_catalog"

// RedisCatalog caches the permission catalog in Redis. Concurrent cold
// reads rebuild the entry once via singleflight.
type RedisCatalog struct {
	client *redis.Client
	loader func(ctx context.Context) ([]Permission, error)
	ttl    time.Duration
	group  singleflight.Group
}

// NewRedisCatalog constructs a catalog backed by Redis. The loader is
// consulted on cache misses, typically Store.ListPermissions.
func NewRedisCatalog(client *redis.Client, ttl time.Duration, loader func(ctx context.Context) ([]Permission, error)) *RedisCatalog {
	return &RedisCatalog{client: client, loader: loader, ttl: ttl}
}

// Get returns the cached catalog, rebuilding it from the loader when
// cold.
func (c *RedisCatalog) Get(ctx context.Context) (map[string]Permission, error) {
	data, err := c.client.Get(ctx, catalogKey).Bytes()
	if err == nil {
		var catalog map[string]Permission
		if err := json.Unmarshal(data, &catalog); err == nil {
			return catalog, nil
		}
		// Unreadable payload: drop and rebuild.
		_ = c.client.Del(ctx, catalogKey).Err()
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	result, err, _ := c.group.Do(catalogKey, func() (any, error) {
		return c.rebuild(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]Permission), nil
}

// Invalidate clears the cache and eagerly rebuilds it so the next
// lookup is warm.
func (c *RedisCatalog) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, catalogKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	_, err := c.rebuild(ctx)
	return err
}

func (c *RedisCatalog) rebuild(ctx context.Context) (map[string]Permission, error) {
	perms, err := c.loader(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]Permission, len(perms))
	for _, perm := range perms {
		catalog[perm.Name] = perm
	}
	data, err := json.Marshal(catalog)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, catalogKey, data, c.ttl).Err(); err != nil {
		return nil, err
	}
	return catalog, nil
}
