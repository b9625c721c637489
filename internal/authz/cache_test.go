package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T, loader func(ctx context.Context) ([]Permission, error)) (*RedisCatalog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCatalog(client, time.Minute, loader), mr
}

func TestRedisCatalogRebuildsOnColdRead(t *testing.T) {
	ctx := context.Background()
	loads := 0
	catalog, _ := newTestCatalog(t, func(ctx context.Context) ([]Permission, error) {
		loads++
		return []Permission{{ID: 1, Name: "create_post"}}, nil
	})

	got, err := catalog.Get(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "create_post")
	require.Equal(t, 1, loads)

	// Second read is served from Redis.
	got, err = catalog.Get(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "create_post")
	require.Equal(t, 1, loads)
}

func TestRedisCatalogInvalidateRebuildsEagerly(t *testing.T) {
	ctx := context.Background()
	perms := []Permission{{ID: 1, Name: "create_post"}}
	loads := 0
	catalog, _ := newTestCatalog(t, func(ctx context.Context) ([]Permission, error) {
		loads++
		return perms, nil
	})

	_, err := catalog.Get(ctx)
	require.NoError(t, err)

	perms = append(perms, Permission{ID: 2, Name: "publish_post"})
	require.NoError(t, catalog.Invalidate(ctx))
	require.Equal(t, 2, loads, "invalidation rebuilds immediately")

	got, err := catalog.Get(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "publish_post")
	require.Equal(t, 2, loads, "post-invalidation read hits the warm cache")
}

func TestRedisCatalogSurfacesLoaderFailure(t *testing.T) {
	ctx := context.Background()
	catalog, _ := newTestCatalog(t, func(ctx context.Context) ([]Permission, error) {
		return nil, errors.New("database down")
	})

	_, err := catalog.Get(ctx)
	require.Error(t, err)
}

func TestRedisCatalogDropsCorruptPayload(t *testing.T) {
	ctx := context.Background()
	loads := 0
	catalog, mr := newTestCatalog(t, func(ctx context.Context) ([]Permission, error) {
		loads++
		return []Permission{{ID: 1, Name: "create_post"}}, nil
	})

	require.NoError(t, mr.Set(catalogKey, "not-json"))

	got, err := catalog.Get(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "create_post")
	require.Equal(t, 1, loads)
}

func TestServiceFallsThroughWhenCatalogFails(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewService(store, failingCatalog{}, nil)

	_, err := store.CreatePermission(ctx, "create_post", "create_post", "")
	require.NoError(t, err)

	perm, err := svc.LookupPermission(ctx, "create_post")
	require.NoError(t, err, "a broken cache must not break lookups")
	require.Equal(t, "create_post", perm.Name)
}

type failingCatalog struct{}

func (failingCatalog) Get(ctx context.Context) (map[string]Permission, error) {
	return nil, errors.New("redis unavailable")
}

func (failingCatalog) Invalidate(ctx context.Context) error {
	return errors.New("redis unavailable")
}
