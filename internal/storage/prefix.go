package storage

import (
	"context"
	"strings"
)

// WithPrefix returns a view of s that namespaces every key under prefix.
// Closing the view does not close s.
func WithPrefix(s Store, prefix string) Store {
	return &prefixed{inner: s, prefix: prefix}
}

type prefixed struct {
	inner  Store
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Remove(ctx context.Context, key string) error {
	return p.inner.Remove(ctx, p.prefix+key)
}

func (p *prefixed) Subscribe(key string, fn func(string)) func() {
	return p.inner.Subscribe(p.prefix+key, func(full string) {
		fn(strings.TrimPrefix(full, p.prefix))
	})
}

func (p *prefixed) Close() error { return nil }
