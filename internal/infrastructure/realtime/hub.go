// Package realtime pushes document changes to live subscribers over
// websockets.
package realtime

import (
	"context"
	"sync"

	"reelgate/internal/core/domain"

	"go.uber.org/zap"
)

// Subscription selects the events a subscriber receives. An empty DocID
// subscribes to the whole collection.
type Subscription struct {
	Collection domain.Collection
	DocID      string
	Viewer     domain.Viewer
}

func (s Subscription) matches(event domain.ChangeEvent) bool {
	return s.DocID == "" || s.DocID == event.DocID
}

// FilterFunc adapts an event for one viewer. ok=false suppresses it.
type FilterFunc func(viewer domain.Viewer, event domain.ChangeEvent) (filtered domain.ChangeEvent, ok bool)

// Bus forwards locally published events to other instances.
type Bus interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	SubscriptionAdded()
	SubscriptionRemoved()
	EventDelivered(collection, changeType string)
	SubscriberDropped()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()             {}
func (nopMetrics) ConnectionClosed()             {}
func (nopMetrics) SubscriptionAdded()            {}
func (nopMetrics) SubscriptionRemoved()          {}
func (nopMetrics) EventDelivered(string, string) {}
func (nopMetrics) SubscriberDropped()            {}

// Subscriber receives filtered events on a buffered channel. The channel is
// closed on Unsubscribe or when the subscriber falls behind.
type Subscriber struct {
	id     uint64
	sub    Subscription
	events chan domain.ChangeEvent

	mu sync.Mutex
	// held is the set of documents the client holds. Nil until Seed is
	// called; until then removals pass through unchecked.
	held map[string]struct{}
}

func (s *Subscriber) Events() <-chan domain.ChangeEvent { return s.events }

// Seed records the documents sent in the initial snapshot. From then on a
// removal only reaches the subscriber for a document it holds.
func (s *Subscriber) Seed(docIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = make(map[string]struct{}, len(docIDs))
	}
	for _, id := range docIDs {
		s.held[id] = struct{}{}
	}
}

// admit updates the held set for event and reports whether to send it.
func (s *Subscriber) admit(event domain.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		return true
	}
	if event.Type == domain.ChangeRemoved {
		if _, ok := s.held[event.DocID]; !ok {
			return false
		}
		delete(s.held, event.DocID)
		return true
	}
	s.held[event.DocID] = struct{}{}
	return true
}

func (s *Subscriber) Subscription() Subscription { return s.sub }

// Hub fans change events out to subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[domain.Collection]map[uint64]*Subscriber
	nextID      uint64
	listeners   []func(domain.ChangeEvent)

	buffer  int
	filter  FilterFunc
	bus     Bus
	metrics Metrics
	logger  *zap.SugaredLogger
}

func NewHub(buffer int, filter FilterFunc, metrics Metrics, logger *zap.SugaredLogger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if filter == nil {
		filter = func(_ domain.Viewer, event domain.ChangeEvent) (domain.ChangeEvent, bool) {
			return event, true
		}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Hub{
		subscribers: make(map[domain.Collection]map[uint64]*Subscriber),
		buffer:      buffer,
		filter:      filter,
		metrics:     metrics,
		logger:      logger,
	}
}

// SetFilter replaces the per-viewer filter. Call it before the first
// subscription.
func (h *Hub) SetFilter(filter FilterFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = filter
}

// SetBus makes Publish forward events to other instances.
func (h *Hub) SetBus(bus Bus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bus = bus
}

// AddListener registers fn for every event, local or remote, before
// subscribers see it.
func (h *Hub) AddListener(fn func(domain.ChangeEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *Hub) Subscribe(sub Subscription) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscriber{
		id:     h.nextID,
		sub:    sub,
		events: make(chan domain.ChangeEvent, h.buffer),
	}
	if h.subscribers[sub.Collection] == nil {
		h.subscribers[sub.Collection] = make(map[uint64]*Subscriber)
	}
	h.subscribers[sub.Collection][s.id] = s
	h.metrics.SubscriptionAdded()
	return s
}

// Unsubscribe is safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Subscriber) bool {
	subs := h.subscribers[s.sub.Collection]
	if _, ok := subs[s.id]; !ok {
		return false
	}
	delete(subs, s.id)
	close(s.events)
	h.metrics.SubscriptionRemoved()
	return true
}

// Publish delivers event locally and forwards it to the bus.
func (h *Hub) Publish(ctx context.Context, event domain.ChangeEvent) error {
	h.Deliver(event)

	h.mu.RLock()
	bus := h.bus
	h.mu.RUnlock()
	if bus == nil {
		return nil
	}
	return bus.Publish(ctx, event)
}

// Deliver hands event to local subscribers only. Subscribers whose buffer is
// full are dropped.
func (h *Hub) Deliver(event domain.ChangeEvent) {
	h.mu.RLock()
	listeners := h.listeners
	h.mu.RUnlock()
	for _, fn := range listeners {
		fn(event)
	}

	var slow []*Subscriber

	// Sends happen under the read lock; channels are only closed under the
	// write lock.
	h.mu.RLock()
	for _, s := range h.subscribers[event.Collection] {
		if !s.sub.matches(event) {
			continue
		}
		filtered, ok := h.filter(s.sub.Viewer, event)
		if !ok || !s.admit(filtered) {
			continue
		}
		select {
		case s.events <- filtered:
			h.metrics.EventDelivered(string(event.Collection), string(filtered.Type))
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range slow {
		if h.removeLocked(s) {
			h.metrics.SubscriberDropped()
			h.logger.Warnw("Dropped slow subscriber",
				"collection", s.sub.Collection,
				"doc_id", s.sub.DocID,
				"user_id", s.sub.Viewer.UserID,
			)
		}
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.subscribers {
		n += len(subs)
	}
	return n
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.subscribers {
		for _, s := range subs {
			h.removeLocked(s)
		}
	}
}
