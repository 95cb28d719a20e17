package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gear-market/internal/core/auth"
	"gear-market/internal/core/cache"
	"gear-market/internal/domain"
)

const listVersionKey = "products:list:version"

// CachedProducts serves the public listing from redis. Every write through it
// bumps a generation counter so stale pages are never read again; view counts
// inside a cached page may lag by up to ttl.
type CachedProducts struct {
	Products
	cache *cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedProducts(inner Products, c *cache.Cache, ttl time.Duration, log *zap.Logger) *CachedProducts {
	return &CachedProducts{Products: inner, cache: c, ttl: ttl, log: log}
}

func (p *CachedProducts) List(ctx context.Context, sort domain.SortKey) ([]domain.ProductView, error) {
	ver := p.cache.Version(ctx, listVersionKey)
	if ver < 0 {
		return p.Products.List(ctx, sort)
	}
	key := cache.VersionedKey("products", ver, "list", string(sort))
	out, err := cache.GetOrLoadJSON(p.cache, ctx, key, p.ttl, func(ctx context.Context) (*[]domain.ProductView, error) {
		vs, err := p.Products.List(ctx, sort)
		if err != nil {
			return nil, err
		}
		return &vs, nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return []domain.ProductView{}, nil
	}
	return *out, nil
}

func (p *CachedProducts) invalidate(ctx context.Context) {
	if err := p.cache.Bump(context.WithoutCancel(ctx), listVersionKey); err != nil {
		p.log.Warn("bump product list cache", zap.Error(err))
	}
}

func (p *CachedProducts) Create(ctx context.Context, caller auth.Caller, in CreateProductInput) (domain.ProductView, error) {
	v, err := p.Products.Create(ctx, caller, in)
	if err == nil {
		p.invalidate(ctx)
	}
	return v, err
}

func (p *CachedProducts) Update(ctx context.Context, caller auth.Caller, id string, in UpdateProductInput) (domain.ProductView, error) {
	v, err := p.Products.Update(ctx, caller, id, in)
	if err == nil {
		p.invalidate(ctx)
	}
	return v, err
}

func (p *CachedProducts) Delete(ctx context.Context, caller auth.Caller, id string) error {
	err := p.Products.Delete(ctx, caller, id)
	if err == nil {
		p.invalidate(ctx)
	}
	return err
}

// Invalidate drops every cached page. The admin binary calls it after a
// moderation delete.
func (p *CachedProducts) Invalidate(ctx context.Context) { p.invalidate(ctx) }
