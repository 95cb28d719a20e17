package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"gear-market/internal/core/cache"
	"gear-market/internal/domain"
)

func TestCachedProducts_ListInvalidatedByWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container tests skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })
	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	c := cache.New(opts.Addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })

	e := newEnv(t)
	alice := e.register(t, "alice")
	cached := NewCachedProducts(e.products, c, time.Minute, zap.NewNop())

	list, err := cached.List(ctx, domain.SortLatest)
	require.NoError(t, err)
	assert.Empty(t, list)

	created, err := cached.Create(ctx, alice, CreateProductInput{Fields: fields()})
	require.NoError(t, err)
	list, err = cached.List(ctx, domain.SortLatest)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// a write that bypasses the decorator is not seen until the next bump
	_, err = e.products.Create(ctx, alice, CreateProductInput{Fields: fields()})
	require.NoError(t, err)
	list, err = cached.List(ctx, domain.SortLatest)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, cached.Delete(ctx, alice, created.ID))
	list, err = cached.List(ctx, domain.SortLatest)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, created.ID, list[0].ID)
}
