// Package storage is the key/value layer behind session state and carts.
package storage

import (
	"context"
	"sync"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Store persists opaque values by key and reports changes to subscribers.
type Store interface {
	// Get returns the value stored under key, or an error wrapping
	// apperrors.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Subscribe calls fn after every change to key, including changes made
	// through this Store. The returned function cancels the subscription.
	Subscribe(key string, fn func(key string)) (unsubscribe func())

	// Close releases the backend.
	Close() error
}

// ErrKeyNotFound is the error backends return for a missing key.
func ErrKeyNotFound(key string) error {
	return apperrors.NotFound("storage key", key)
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return apperrors.KindOf(err) == apperrors.KindNotFound
}

// Notifier fans change notifications out to per-key subscribers. Backends
// embed it to implement Subscribe. Callbacks run without the lock held so
// they may read the store.
type Notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]func(string)
}

// Subscribe registers fn for changes to key.
func (n *Notifier) Subscribe(key string, fn func(string)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs == nil {
		n.subs = make(map[string]map[uint64]func(string))
	}
	if n.subs[key] == nil {
		n.subs[key] = make(map[uint64]func(string))
	}
	n.nextID++
	id := n.nextID
	n.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[key], id)
			if len(n.subs[key]) == 0 {
				delete(n.subs, key)
			}
		})
	}
}

// Notify runs the subscribers of key.
func (n *Notifier) Notify(key string) {
	n.mu.Lock()
	fns := make([]func(string), 0, len(n.subs[key]))
	for _, fn := range n.subs[key] {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}
