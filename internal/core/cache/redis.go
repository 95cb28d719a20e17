package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	RDB *redis.Client
	sf  singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return &Cache{
		RDB: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
	}
}

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	// 先读缓存
	if b, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		return b, nil
	}
	// single flight 合并回源
	v, err, _ := c.sf.Do(key, func() (any, error) {
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		_ = c.RDB.Set(ctx, key, b, ttl).Err()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Version reads a generation counter; keys built from it are dropped
// wholesale by Bump without scanning.
func (c *Cache) Version(ctx context.Context, name string) int64 {
	n, err := c.RDB.Get(ctx, name).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return -1
		}
		return 0
	}
	return n
}

func (c *Cache) Bump(ctx context.Context, name string) error {
	return c.RDB.Incr(ctx, name).Err()
}

func VersionedKey(prefix string, version int64, parts ...string) string {
	k := prefix + ":v" + strconv.FormatInt(version, 10)
	for _, p := range parts {
		k += ":" + p
	}
	return k
}
