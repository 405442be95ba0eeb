package feed

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// DefaultQueueSize is the number of undelivered events kept per subscriber
const DefaultQueueSize = 8

type subscription struct {
	table   string
	queue   chan Event
	handler Handler
	once    sync.Once
}

// Hub is an in-process Feed. Each subscriber gets its own goroutine and a small
// queue; when the queue is full new events are dropped for that subscriber.
type Hub struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscription
	nextID    uint64
	queueSize int
	closed    bool
}

// NewHub creates a hub with DefaultQueueSize
func NewHub() *Hub {
	return NewHubWithQueueSize(DefaultQueueSize)
}

// NewHubWithQueueSize creates a hub keeping up to queueSize undelivered events per subscriber
func NewHubWithQueueSize(queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Hub{
		subs:      make(map[uint64]*subscription),
		queueSize: queueSize,
	}
}

// Publish fans the event out without blocking on slow subscribers
func (h *Hub) Publish(ctx context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subs {
		if sub.table != "" && sub.table != event.Table {
			continue
		}
		select {
		case sub.queue <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			glog.V(1).Infof("[feed]drop %s for subscriber %d (queue full)", event.ID, id)
		}
	}
	return nil
}

// Subscribe starts a goroutine that calls handler for every event on table.
// On a closed hub it does nothing and returns a no-op unsubscribe.
func (h *Hub) Subscribe(table string, handler Handler) func() {
	sub := &subscription{
		table:   table,
		queue:   make(chan Event, h.queueSize),
		handler: handler,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	go func() {
		for event := range sub.queue {
			sub.handler(event)
		}
	}()

	glog.V(1).Infof("[feed]subscribe %d table=%q", id, table)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(id)
	}
}

// remove must be called with h.mu held
func (h *Hub) remove(id uint64) {
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	sub.once.Do(func() { close(sub.queue) })
	glog.V(1).Infof("[feed]unsubscribe %d", id)
}

// SubscriberCount returns the number of live subscriptions
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscription. Later subscriptions are no-ops.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id := range h.subs {
		h.remove(id)
	}
	h.closed = true
	return nil
}
