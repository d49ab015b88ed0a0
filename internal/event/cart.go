package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topic constants for cart activity events.
const (
	TopicCartUpdated = "storefront.cart.updated"
	TopicCartCleared = "storefront.cart.cleared"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// SourceStorefront identifies events published by this service.
const SourceStorefront = "storefront"

const publishTimeout = 5 * time.Second

var eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_cart_events_dropped_total",
	Help: "Cart events dropped because the publish queue was full or closed",
}, []string{"topic"})

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	Identity   string         `json:"identity"`
	Items      []CartItemData `json:"items"`
	TotalItems int            `json:"total_items"`
	TotalPrice string         `json:"total_price"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	Identity string `json:"identity"`
}

// EventPublisher is satisfied by *pkgkafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

type message struct {
	ctx   context.Context
	topic string
	event *pkgkafka.Event
}

// CartProducer publishes cart activity. Calls enqueue and return at once; a
// single worker drains the queue, so events for one cart keep their order.
// Events that do not fit in the queue are dropped.
type CartProducer struct {
	publisher EventPublisher
	logger    *slog.Logger

	mu     sync.RWMutex
	queue  chan message
	closed bool
	done   chan struct{}
}

// NewCartProducer starts the publishing worker.
func NewCartProducer(publisher EventPublisher, logger *slog.Logger, buffer int) *CartProducer {
	if buffer <= 0 {
		buffer = 256
	}
	p := &CartProducer{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan message, buffer),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// CartUpdated publishes the cart's new contents.
func (p *CartProducer) CartUpdated(ctx context.Context, identity string, snap domain.Snapshot) {
	items := make([]CartItemData, len(snap.Items))
	for i, item := range snap.Items {
		items[i] = CartItemData{
			ProductID: item.ID.String(),
			Name:      item.Name,
			Size:      item.Size,
			Color:     item.Color,
			Price:     item.Price.StringFixed(domain.PricePrecision),
			Quantity:  item.Qty(),
		}
	}

	p.enqueue(ctx, TopicCartUpdated, identity, "cart.updated", CartUpdatedData{
		Identity:   identity,
		Items:      items,
		TotalItems: snap.TotalItems,
		TotalPrice: snap.TotalPrice.StringFixed(domain.PricePrecision),
	})
}

// CartCleared publishes that the cart was emptied.
func (p *CartProducer) CartCleared(ctx context.Context, identity string) {
	p.enqueue(ctx, TopicCartCleared, identity, "cart.cleared", CartClearedData{Identity: identity})
}

func (p *CartProducer) enqueue(ctx context.Context, topic, identity, eventType string, data any) {
	ev, err := pkgkafka.NewEvent(eventType, identity, AggregateTypeCart, SourceStorefront, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build cart event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}
	if sid := logger.SessionIDFromContext(ctx); sid != "" {
		ev.WithMetadata("session_id", sid)
	}

	// The request may finish before the worker gets to the event; keep its
	// values and trace but not its deadline.
	msg := message{ctx: context.WithoutCancel(ctx), topic: topic, event: ev}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		eventsDropped.WithLabelValues(topic).Inc()
		return
	}
	select {
	case p.queue <- msg:
	default:
		eventsDropped.WithLabelValues(topic).Inc()
		p.logger.WarnContext(ctx, "cart event queue full, dropping event",
			slog.String("topic", topic),
			slog.String("identity", identity),
		)
	}
}

func (p *CartProducer) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(msg.ctx, publishTimeout)
		// Publish logs and counts its own failures.
		_ = p.publisher.Publish(ctx, msg.topic, msg.event)
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (p *CartProducer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
