package events

import (
	"sync"

	"github.com/1ureka/whep-play/internal/util"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Hub fans events out to subscribers. A subscriber that falls behind loses
// events rather than stalling the session.
type Hub struct {
	log    util.Logger
	buffer int

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewHub creates a Hub. A non-positive buffer selects DefaultBuffer.
func NewHub(buffer int, log util.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = util.NewLogger("events")
	}
	return &Hub{log: log, buffer: buffer, subs: make(map[int]chan Event)}
}

// Notify delivers e to every subscriber without blocking.
func (h *Hub) Notify(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.log.Debugf("subscriber %d is full, dropping %s event", id, e.Type)
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than once.
// On a closed hub the channel is already closed.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later events are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
