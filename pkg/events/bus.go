package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// TypeWildcard subscribes a handler to every event type.
const TypeWildcard = "*"

// Handler processes one event. A returned error (or panic) is logged and
// isolated: it never reaches the publisher or other handlers.
type Handler func(ctx context.Context, ev Envelope) error

// Metrics is the subset of instrumentation the bus reports to.
type Metrics interface {
	EventDeduplicated(ctx context.Context, eventType string)
}

// Bus dispatches published events to subscribers, dropping duplicates
// detected by the replay ledger.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]map[int]Handler
	nextID  int
	ledger  Ledger
	logger  *slog.Logger
	metrics Metrics
}

// NewBus creates a bus over the given ledger. A nil logger falls back to
// slog.Default().
func NewBus(ledger Ledger, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]map[int]Handler),
		ledger: ledger,
		logger: logger,
	}
}

// SetMetrics wires instrumentation after construction.
func (b *Bus) SetMetrics(m Metrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

// Subscribe registers handler for eventType (TypeWildcard for all types)
// and returns a subscription id for Unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[int]Handler)
	}
	b.subs[eventType][b.nextID] = handler
	return b.nextID
}

// Unsubscribe removes a subscription. Unknown ids are a no-op.
func (b *Bus) Unsubscribe(eventType string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers := b.subs[eventType]; handlers != nil {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.subs, eventType)
		}
	}
}

// Publish delivers ev to every handler subscribed to its exact type and
// to the wildcard type. A duplicate inside the replay window is dropped
// with a warning and a nil return; the publisher cannot tell dedup from
// delivery. Handler failures are logged, never propagated.
func (b *Bus) Publish(ctx context.Context, ev Envelope) error {
	id, err := ev.Hash()
	if err != nil {
		return err
	}

	duplicate, err := b.ledger.Seen(ctx, id)
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.Type, err)
	}
	if duplicate {
		b.logger.Warn("duplicate event dropped",
			"type", ev.Type,
			"event_id", id,
			"tenant", ev.TenantID,
		)
		b.mu.RLock()
		m := b.metrics
		b.mu.RUnlock()
		if m != nil {
			m.EventDeduplicated(ctx, ev.Type)
		}
		return nil
	}

	for _, handler := range b.handlersFor(ev.Type) {
		b.invoke(ctx, handler, ev, id)
	}
	return nil
}

func (b *Bus) handlersFor(eventType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make([]Handler, 0, len(b.subs[eventType])+len(b.subs[TypeWildcard]))
	for _, h := range b.subs[eventType] {
		handlers = append(handlers, h)
	}
	if eventType != TypeWildcard {
		for _, h := range b.subs[TypeWildcard] {
			handlers = append(handlers, h)
		}
	}
	return handlers
}

// invoke runs one handler with panic isolation.
func (b *Bus) invoke(ctx context.Context, handler Handler, ev Envelope, id string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"type", ev.Type,
				"event_id", id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	if err := handler(ctx, ev); err != nil {
		b.logger.Error("event handler failed",
			"type", ev.Type,
			"event_id", id,
			"error", err,
		)
	}
}
