// Package notify provides a broadcast hub for one-shot job completion
// events. There is no persistence or replay: an event reaches exactly the
// listeners connected at the moment of publication, at most once each.
package notify

import (
	"log/slog"
	"sync"
)

// Event is a job completion notification.
type Event struct {
	// JobID identifies the completed job.
	JobID string `json:"job_id"`
	// Filename is the output filename in the result store.
	Filename string `json:"filename"`
	// URL is the absolute locator of the stored output.
	URL string `json:"url"`
}

// defaultBuffer is the per-subscriber channel capacity. A subscriber that
// falls this many events behind starts losing events instead of stalling
// publishers.
const defaultBuffer = 16

// Hub fans completion events out to subscribers. All methods are safe for
// concurrent use.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
	logger *slog.Logger
}

// HubOption is a function that configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		subs:   make(map[chan Event]struct{}),
		buffer: defaultBuffer,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new listener and returns its event channel.
// The caller must eventually pass the same channel to Unsubscribe.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel. Unsubscribing a
// channel that is not registered is a no-op.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Publish delivers the event to every currently registered listener.
// Delivery is best-effort: a listener whose buffer is full loses the event
// rather than blocking the publisher. Publishing with zero listeners is a
// no-op.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.logger.Warn("dropping notification for slow listener",
				slog.String("job_id", event.JobID),
			)
		}
	}
}

// Len returns the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
