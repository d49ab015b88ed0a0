package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	// UserKey holds the stored user record the cart identity derives from.
	UserKey = "user"

	keyPrefix = "cart_"
)

// Key returns the storage key of the cart owned by identity.
func Key(identity string) string {
	return keyPrefix + identity
}

// Publisher receives cart changes. Implementations must not block.
type Publisher interface {
	CartUpdated(ctx context.Context, identity string, snap domain.Snapshot)
	CartCleared(ctx context.Context, identity string)
}

// Option configures a Store.
type Option func(*Store)

// WithCartStorage keeps carts in s instead of the session storage.
func WithCartStorage(s storage.Store) Option {
	return func(st *Store) { st.carts = s }
}

// WithPublisher reports mutations to p.
func WithPublisher(p Publisher) Option {
	return func(st *Store) { st.events = p }
}

// Store owns the cart of whoever the session's stored user record names.
// Mutations are applied in memory, then the full cart is written under the
// identity's key. Write failures are logged and never surface to callers.
//
// Other sessions of the same user share the key. A write to it from anywhere
// marks the in-memory copy stale; the next read or mutation reloads it.
type Store struct {
	session storage.Store
	carts   storage.Store
	events  Publisher
	logger  *slog.Logger

	mu          sync.Mutex
	identity    string
	items       []domain.LineItem
	unsubscribe func()
	unwatchCart func()
	closed      bool

	// stale is set from storage callbacks, which may run while another
	// store holds its own lock, so it never takes s.mu.
	stale atomic.Bool
}

// NewStore loads the cart for the session's current identity and follows
// changes to the stored user record and to the cart itself.
func NewStore(ctx context.Context, session storage.Store, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		session: session,
		carts:   session,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Reload(ctx)
	s.unsubscribe = session.Subscribe(UserKey, func(string) {
		s.Reload(context.Background())
	})
	return s
}

// Identity returns the identity the cart is currently keyed by.
func (s *Store) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Reload re-resolves the identity and swaps in its persisted cart. Without
// an identity the cart is empty and nothing is persisted.
func (s *Store) Reload(ctx context.Context) {
	identity := s.resolveIdentity(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if identity != s.identity || s.unwatchCart == nil {
		s.watch(identity)
	}
	s.identity = identity
	s.stale.Store(false)
	s.items = nil
	if identity != "" {
		s.items = s.load(ctx, identity)
	}
}

// watch moves the cart subscription to identity's key. Callers hold s.mu.
func (s *Store) watch(identity string) {
	if s.unwatchCart != nil {
		s.unwatchCart()
		s.unwatchCart = nil
	}
	if identity == "" {
		return
	}
	s.unwatchCart = s.carts.Subscribe(Key(identity), func(string) {
		s.stale.Store(true)
	})
}

// refresh reloads the persisted cart if it changed since the last load.
// Callers hold s.mu.
func (s *Store) refresh(ctx context.Context) {
	if s.identity == "" || !s.stale.Swap(false) {
		return
	}
	s.items = s.load(ctx, s.identity)
}

func (s *Store) resolveIdentity(ctx context.Context) string {
	raw, err := s.session.Get(ctx, UserKey)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.WarnContext(ctx, "failed to read stored user", slog.String("error", err.Error()))
		}
		return ""
	}

	user, ok, err := domain.ParseUserRecord(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "clearing malformed stored user", slog.String("error", err.Error()))
		if err := s.session.Remove(ctx, UserKey); err != nil {
			s.logger.WarnContext(ctx, "failed to clear stored user", slog.String("error", err.Error()))
		}
		return ""
	}
	if !ok {
		return ""
	}
	return user.Identity()
}

func (s *Store) load(ctx context.Context, identity string) []domain.LineItem {
	key := Key(identity)

	raw, err := s.carts.Get(ctx, key)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.WarnContext(ctx, "failed to load cart",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var items []domain.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.WarnContext(ctx, "clearing malformed cart",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		if err := s.carts.Remove(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to clear malformed cart", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil
	}
	return items
}

// AddItem merges item into the line keyed by (item.ID, item.Size), adding one
// to its quantity, or appends it with quantity 1. An existing line keeps its
// own name, price and other details.
func (s *Store) AddItem(ctx context.Context, item domain.LineItem) {
	s.mutate(ctx, "add", func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if items[i].Matches(item.ID, item.Size) {
				items[i].Quantity = items[i].Qty() + 1
				return items
			}
		}
		item.Quantity = 1
		item.Specs = cloneSpecs(item.Specs)
		return append(items, item)
	})
}

// RemoveItem removes the line (id, size), or every line of id when size is
// empty.
func (s *Store) RemoveItem(ctx context.Context, id domain.ID, size string) {
	s.mutate(ctx, "remove", func(items []domain.LineItem) []domain.LineItem {
		return removeLines(items, id, size)
	})
}

func removeLines(items []domain.LineItem, id domain.ID, size string) []domain.LineItem {
	out := items[:0]
	for _, it := range items {
		drop := it.ID == id
		if size != "" {
			drop = it.Matches(id, size)
		}
		if !drop {
			out = append(out, it)
		}
	}
	return out
}

// UpdateQuantity sets the quantity of (id, size). A quantity of zero or less
// removes the line as RemoveItem does. No stock ceiling applies here.
func (s *Store) UpdateQuantity(ctx context.Context, id domain.ID, size string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(ctx, id, size)
		return
	}
	s.mutate(ctx, "update_quantity", func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if items[i].Matches(id, size) {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

// IncrementQuantity adds one to (id, size) unless that would exceed maxStock.
// A maxStock of zero or less means no ceiling.
func (s *Store) IncrementQuantity(ctx context.Context, id domain.ID, size string, maxStock int) {
	s.mutate(ctx, "increment", func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if !items[i].Matches(id, size) {
				continue
			}
			next := items[i].Qty() + 1
			if maxStock > 0 && next > maxStock {
				continue
			}
			items[i].Quantity = next
		}
		return items
	})
}

// DecrementQuantity subtracts one from (id, size). At quantity 1 it does
// nothing; the line must be removed explicitly.
func (s *Store) DecrementQuantity(ctx context.Context, id domain.ID, size string) {
	s.mutate(ctx, "decrement", func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if !items[i].Matches(id, size) {
				continue
			}
			next := items[i].Qty() - 1
			if next <= 0 {
				continue
			}
			items[i].Quantity = next
		}
		return items
	})
}

// ClearCart empties the cart and deletes its persisted form.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	identity := s.identity
	if identity != "" {
		ctx, span := tracing.StartSpan(ctx, "cart.clear")
		if err := s.carts.Remove(ctx, Key(identity)); err != nil {
			tracing.RecordError(span, err)
			persistErrors.Inc()
			s.logger.ErrorContext(ctx, "failed to clear persisted cart",
				slog.String("key", Key(identity)),
				slog.String("error", err.Error()),
			)
		}
		span.End()
		if s.events != nil {
			s.events.CartCleared(ctx, identity)
		}
	}
	s.mu.Unlock()

	mutations.WithLabelValues("clear").Inc()
}

// Items returns a copy of the current lines.
func (s *Store) Items() []domain.LineItem {
	return s.Snapshot().Items
}

// Snapshot returns the lines with freshly derived totals.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh(context.Background())
	return domain.NewSnapshot(s.items)
}

// TotalItems sums the quantities of every line.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh(context.Background())
	return domain.TotalItems(s.items)
}

// TotalPrice sums price times quantity over every line.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh(context.Background())
	return domain.TotalPrice(s.items)
}

// Close stops following identity and cart changes. The persisted cart is
// kept.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.watch("")
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Store) mutate(ctx context.Context, op string, fn func([]domain.LineItem) []domain.LineItem) {
	s.mu.Lock()
	s.refresh(ctx)
	s.items = fn(s.items)
	if s.identity != "" {
		snap := domain.NewSnapshot(s.items)
		s.persist(ctx, s.identity, snap.Items)
		// Publishers do not block; enqueueing here keeps events in write
		// order.
		if s.events != nil {
			s.events.CartUpdated(ctx, s.identity, snap)
		}
	}
	s.mu.Unlock()

	mutations.WithLabelValues(op).Inc()
}

// persist writes items under identity's key. Callers hold s.mu so writes
// land in mutation order.
func (s *Store) persist(ctx context.Context, identity string, items []domain.LineItem) {
	key := Key(identity)
	ctx, span := tracing.StartSpan(ctx, "cart.persist")
	defer span.End()

	data, err := json.Marshal(items)
	if err == nil {
		err = s.carts.Set(ctx, key, data)
	}
	if err != nil {
		tracing.RecordError(span, err)
		persistErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to persist cart",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func cloneSpecs(specs []domain.Spec) []domain.Spec {
	if specs == nil {
		return nil
	}
	out := make([]domain.Spec, len(specs))
	for i, sp := range specs {
		out[i] = sp
		out[i].Values = append([]domain.SpecValue(nil), sp.Values...)
	}
	return out
}
