package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
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

	c := New(opts.Addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))
	return c
}

type item struct {
	Name string `json:"name"`
}

func TestGetOrLoadJSON_LoadsOnceThenHits(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var loads int32
	load := func(context.Context) (*[]item, error) {
		atomic.AddInt32(&loads, 1)
		return &[]item{{Name: "strat"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := GetOrLoadJSON(c, ctx, "k1", time.Minute, load)
			assert.NoError(t, err)
			assert.Equal(t, []item{{Name: "strat"}}, *got)
		}()
	}
	wg.Wait()

	got, err := GetOrLoadJSON(c, ctx, "k1", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "strat", (*got)[0].Name)
	assert.LessOrEqual(t, atomic.LoadInt32(&loads), int32(10))
	before := atomic.LoadInt32(&loads)
	_, _ = GetOrLoadJSON(c, ctx, "k1", time.Minute, load)
	assert.Equal(t, before, atomic.LoadInt32(&loads), "served from redis")
}

func TestGetOrLoadJSON_ErrorNotCached(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("db down")

	_, err := GetOrLoadJSON(c, ctx, "k2", time.Minute, func(context.Context) (*item, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	got, err := GetOrLoadJSON(c, ctx, "k2", time.Minute, func(context.Context) (*item, error) { return &item{Name: "ok"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Name)
}

func TestGetOrLoadJSON_EvictsUndecodable(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.RDB.Set(ctx, "k3", "{not json", time.Minute).Err())

	got, err := GetOrLoadJSON(c, ctx, "k3", time.Minute, func(context.Context) (*item, error) { return &item{Name: "fresh"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)

	raw, err := c.RDB.Get(ctx, "k3").Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fresh"}`, raw)
}

func TestVersionBump(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	assert.Equal(t, int64(0), c.Version(ctx, "ver"))
	require.NoError(t, c.Bump(ctx, "ver"))
	require.NoError(t, c.Bump(ctx, "ver"))
	assert.Equal(t, int64(2), c.Version(ctx, "ver"))
}

func TestVersionedKey(t *testing.T) {
	assert.Equal(t, "products:v3:list:latest", VersionedKey("products", 3, "list", "latest"))
	assert.Equal(t, "p:v0", VersionedKey("p", 0))
}
