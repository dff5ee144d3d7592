package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"hotel-security-backend/internal/models"
)

// HubConfig holds fan-out parameters
type HubConfig struct {
	// QueueSize is the per-subscriber channel buffer. A subscriber whose
	// buffer is full loses events rather than stalling the hub.
	QueueSize int
}

func DefaultHubConfig() HubConfig {
	return HubConfig{QueueSize: 64}
}

// Subscription is one live consumer's view of the stream. Close must be
// called on every exit path or the hub leaks the entry.
type Subscription struct {
	id     string
	events chan models.Event
	hub    *Hub
	once   sync.Once
}

// Events returns the receive channel. It is closed when the subscription or
// the hub shuts down.
func (s *Subscription) Events() <-chan models.Event {
	return s.events
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.id)
	})
}

// Hub is the in-process fan-out: every published event goes to every current
// subscriber, in publish order per subscriber. Slow subscribers drop events
// instead of blocking the producer.
type Hub struct {
	config HubConfig

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

func NewHub(config HubConfig) *Hub {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultHubConfig().QueueSize
	}
	return &Hub{
		config: config,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe registers a new consumer. The first event on the channel is a
// connected envelope so the consumer can confirm the stream is live.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		events: make(chan models.Event, h.config.QueueSize),
	}
	sub.hub = h

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.events)
		return sub
	}
	h.subs[sub.id] = sub
	// Queued under the lock so a concurrent Close cannot slip between
	// registration and the greeting.
	sub.events <- models.Event{
		Type:      models.EventConnected,
		Data:      map[string]interface{}{"message": "event stream connected"},
		Timestamp: time.Now().UTC(),
	}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.events)
	}
}

// Publish stamps the envelope and fans it out.
func (h *Hub) Publish(eventType string, data map[string]interface{}) {
	h.Forward(models.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Forward fans out an already-stamped envelope, preserving its original
// timestamp. Relayed events from other processes come through here.
func (h *Hub) Forward(ev models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		select {
		case sub.events <- ev:
		default:
			log.Printf("Hub: subscriber %s queue full, dropping %s event", sub.id, ev.Type)
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close shuts down all subscriptions. Publish becomes a no-op afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.events)
	}
}
