package api

import (
	"sync"

	"github.com/bryanchriswhite/shadowcap/internal/capture"
)

// Hub fans capture events out to subscribers. Slow subscribers miss events
// rather than stalling a capture.
type Hub struct {
	mu        sync.Mutex
	listeners []chan capture.Event
	closed    bool
}

// NewHub creates an event hub
func NewHub() *Hub {
	return &Hub{listeners: make([]chan capture.Event, 0)}
}

// Subscribe adds a listener for capture events
func (h *Hub) Subscribe() chan capture.Event {
	ch := make(chan capture.Event, 32)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.listeners = append(h.listeners, ch)
	return ch
}

// Unsubscribe removes a listener
func (h *Hub) Unsubscribe(ch chan capture.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends e to every listener without blocking
func (h *Hub) Publish(e capture.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, listener := range h.listeners {
		select {
		case listener <- e:
		default:
		}
	}
}

// Close closes every listener; later subscribers get a closed channel
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, listener := range h.listeners {
		close(listener)
	}
	h.listeners = nil
	h.closed = true
}
