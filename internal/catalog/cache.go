package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ttwixxbot/telegram-shop/internal/domain"
)

const (
	cacheKey = "catalog:products"

	// loadTimeout bounds a shared source load, which outlives the caller that started it.
	loadTimeout = 30 * time.Second
)

// CachedProvider keeps the catalog in Redis in front of a slower source.
type CachedProvider struct {
	source  Provider
	client  *redis.Client
	baseTTL time.Duration
	log     *zap.Logger
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCachedProvider(source Provider, client *redis.Client, baseTTL time.Duration, log *zap.Logger) *CachedProvider {
	if baseTTL <= 0 {
		baseTTL = 5 * time.Minute
	}
	return &CachedProvider{
		source:  source,
		client:  client,
		baseTTL: baseTTL,
		log:     log,
	}
}

// Products serves the catalog from Redis, loading it from the source on a miss. Concurrent
// misses share one load. The load is detached from the caller, so a caller that gives up
// only stops waiting and the others still get the result.
func (c *CachedProvider) Products(ctx context.Context) ([]domain.Product, error) {
	ch := c.sfg.DoChan(cacheKey, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		products, err := c.get(ctx)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("catalog cache get failed", zap.Error(err)) // continue to source
		}

		products, err = c.source.Products(ctx)
		if err != nil {
			return nil, err
		}

		if errSet := c.set(ctx, products); errSet != nil {
			c.log.Warn("catalog cache set failed", zap.Error(errSet))
		}
		return products, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Product), nil
	}
}

// Invalidate drops the cached catalog so the next call reads the source.
func (c *CachedProvider) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *CachedProvider) get(ctx context.Context) ([]domain.Product, error) {
	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("unmarshal catalog failed: %w", err)
	}
	return products, nil
}

func (c *CachedProvider) set(ctx context.Context, products []domain.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal catalog failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	if err := c.client.Set(ctx, cacheKey, data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
