package store

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

type subscriber struct {
	collection string
	filter     Filter
	ch         chan ChangeEvent
}

// Hub fans committed changes out to in-process subscribers. Backends
// without a native change feed publish into it after each commit.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

// Subscribe registers a subscriber that is removed when ctx is done
func (h *Hub) Subscribe(ctx context.Context, collection string, filter Filter) <-chan ChangeEvent {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	sub := &subscriber{collection: collection, filter: filter, ch: make(chan ChangeEvent, subscriberBuffer)}
	h.subs[id] = sub
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(sub.ch)
		h.mu.Unlock()
	}()
	return sub.ch
}

// Publish delivers events to matching subscribers. A subscriber whose buffer
// is full misses the event rather than stalling the writer.
func (h *Hub) Publish(events ...ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range events {
		for _, sub := range h.subs {
			if sub.collection != ev.Collection {
				continue
			}
			if len(ev.Data) > 0 && !sub.filter.Match(ev.Data) {
				continue
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}
