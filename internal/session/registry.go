package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/storage"
)

var liveCarts = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "storefront_session_live_carts",
	Help: "Cart stores currently held in memory",
})

// Registry hands out sessions and keeps one cart.Store per live session.
// Stores idle longer than the idle timeout are closed and dropped; their
// carts stay persisted and reload on the next request.
type Registry struct {
	root     storage.Store
	idle     time.Duration
	logger   *slog.Logger
	cartOpts []cart.Option
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	store    *cart.Store
	lastUsed time.Time
}

// NewRegistry keeps session values under "session:<id>:" in root. Carts are
// stored wherever cartOpts say, defaulting to root itself.
func NewRegistry(root storage.Store, idle time.Duration, logger *slog.Logger, cartOpts ...cart.Option) *Registry {
	return &Registry{
		root:     root,
		idle:     idle,
		logger:   logger,
		cartOpts: append([]cart.Option{cart.WithCartStorage(root)}, cartOpts...),
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Session returns the session with id.
func (r *Registry) Session(id string) *Session {
	return &Session{
		ID:     id,
		store:  storage.WithPrefix(r.root, "session:"+id+":"),
		logger: r.logger,
	}
}

// Cart returns the cart store of session id, creating it on first use.
func (r *Registry) Cart(ctx context.Context, id string) *cart.Store {
	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		return e.store
	}
	r.mu.Unlock()

	// Loading touches storage; build outside the lock and keep the first
	// store if another request raced us.
	store := cart.NewStore(ctx, r.Session(id).Storage(), r.logger, r.cartOpts...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok || r.closed {
		store.Close()
		if ok {
			e.lastUsed = r.now()
			return e.store
		}
		return store
	}
	r.entries[id] = &entry{store: store, lastUsed: r.now()}
	liveCarts.Inc()
	return store
}

// Evict closes stores idle for longer than the idle timeout and returns how
// many it dropped.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var stale []*cart.Store
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e.store)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	liveCarts.Sub(float64(len(stale)))
	return len(stale)
}

// Run evicts idle stores every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.logger.Debug("evicted idle cart stores", slog.Int("count", n))
			}
		}
	}
}

// Len returns the number of live cart stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close closes every live store.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.store.Close()
	}
	liveCarts.Sub(float64(len(entries)))
}
