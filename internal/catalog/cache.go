package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
)

// ErrCacheClosed is returned by reads after Close.
var ErrCacheClosed = errors.New("catalog cache closed")

// Source fetches the collections the cache holds.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListCategories(ctx context.Context, query string) ([]domain.Category, error)
}

// Cache keeps the product and category collections for ttl. Concurrent
// misses share one fetch, and a fetch that completes after Invalidate or
// Close is discarded.
type Cache struct {
	products   *collection[domain.Product]
	categories *collection[domain.Category]
}

// NewCache returns a cache over src. A zero ttl disables reuse but still
// shares in-flight fetches.
func NewCache(src Source, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		products: newCollection("products", ttl, logger, src.ListProducts),
		categories: newCollection("categories", ttl, logger, func(ctx context.Context) ([]domain.Category, error) {
			return src.ListCategories(ctx, "")
		}),
	}
}

// Products returns the product collection. Callers must not modify it.
func (c *Cache) Products(ctx context.Context) ([]domain.Product, error) {
	return c.products.get(ctx)
}

// Categories returns the category collection. Callers must not modify it.
func (c *Cache) Categories(ctx context.Context) ([]domain.Category, error) {
	return c.categories.get(ctx)
}

// Product finds a product by id in the cached collection.
func (c *Cache) Product(ctx context.Context, id string) (domain.Product, bool, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return domain.Product{}, false, err
	}
	p, ok := FindProduct(products, id)
	return p, ok, nil
}

// Invalidate drops both collections.
func (c *Cache) Invalidate() {
	c.products.invalidate()
	c.categories.invalidate()
}

// Close drops both collections and fails further reads.
func (c *Cache) Close() {
	c.products.close()
	c.categories.close()
}

// FindProduct matches id against product ids as strings, then numerically.
func FindProduct(products []domain.Product, id string) (domain.Product, bool) {
	want := domain.ID(id)
	wantNum, numeric := want.Int()
	for _, p := range products {
		if p.ID == want {
			return p, true
		}
		if n, ok := p.ID.Int(); numeric && ok && n == wantNum {
			return p, true
		}
	}
	return domain.Product{}, false
}

type collection[T any] struct {
	name   string
	ttl    time.Duration
	load   func(context.Context) ([]T, error)
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group

	mu        sync.Mutex
	gen       uint64
	items     []T
	fetchedAt time.Time
	fresh     bool
	closed    bool
}

func newCollection[T any](name string, ttl time.Duration, logger *slog.Logger, load func(context.Context) ([]T, error)) *collection[T] {
	return &collection[T]{
		name:   name,
		ttl:    ttl,
		load:   load,
		logger: logger,
		now:    time.Now,
	}
}

func (c *collection[T]) get(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if c.fresh && c.ttl > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		items := c.items
		c.mu.Unlock()
		cacheRequests.WithLabelValues(c.name, "hit").Inc()
		return items, nil
	}
	gen := c.gen
	c.mu.Unlock()

	cacheRequests.WithLabelValues(c.name, "miss").Inc()

	// The shared fetch outlives any one caller's cancellation.
	ch := c.group.DoChan(fmt.Sprintf("%s:%d", c.name, gen), func() (any, error) {
		items, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(gen, items)
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]T), nil
	}
}

func (c *collection[T]) store(gen uint64, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		c.logger.Debug("discarding stale catalog fetch", slog.String("collection", c.name))
		cacheStaleDiscards.WithLabelValues(c.name).Inc()
		return
	}
	c.items = items
	c.fetchedAt = c.now()
	c.fresh = true
}

func (c *collection[T]) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items = nil
	c.fresh = false
}

func (c *collection[T]) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items = nil
	c.fresh = false
	c.closed = true
}
