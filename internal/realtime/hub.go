// Package realtime fans committed row changes out to websocket
// subscribers, one logical channel per watched resource.
package realtime

import (
	"sync"
	"time"

	"collector_hub/internal/metrics"
)

// Event types
const (
	Insert = "INSERT"
	Update = "UPDATE"
	Delete = "DELETE"
)

// Event is a change notification for one row.
type Event struct {
	Type   string    `json:"type"`
	Table  string    `json:"table"`
	Topic  string    `json:"topic"`
	Record any       `json:"record"`
	At     time.Time `json:"at"`
}

// Publisher is implemented by Hub. Services accept it so they can run
// without realtime delivery.
type Publisher interface {
	Publish(topic string, ev Event)
}

// Publish is a nil-safe helper for services holding an optional Publisher.
func Publish(p Publisher, topic, typ, table string, record any) {
	if p == nil {
		return
	}
	p.Publish(topic, Event{Type: typ, Table: table, Topic: topic, Record: record, At: time.Now().UTC()})
}

// Subscription receives events for one topic until Close is called or the
// hub drops it for falling behind.
type Subscription struct {
	C     <-chan Event
	topic string
	send  chan Event
	hub   *Hub
	once  sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub holds the topic -> subscriber index.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]map[*Subscription]struct{}
	bufferSize int
}

// NewHub creates a hub whose subscribers buffer up to bufferSize events.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		topics:     make(map[string]map[*Subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a new subscriber on topic.
func (h *Hub) Subscribe(topic string) *Subscription {
	ch := make(chan Event, h.bufferSize)
	sub := &Subscription{C: ch, topic: topic, send: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	metrics.RealtimeSubscribers.Inc()
	return sub
}

// Publish delivers ev to every subscriber of topic without blocking.
// Subscribers whose buffer is full are dropped.
func (h *Hub) Publish(topic string, ev Event) {
	if ev.Topic == "" {
		ev.Topic = topic
	}
	var slow []*Subscription

	h.mu.RLock()
	for sub := range h.topics[topic] {
		select {
		case sub.send <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.remove(sub)
	}
}

// Subscribers returns the number of subscribers on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) remove(sub *Subscription) {
	sub.once.Do(func() {
		h.mu.Lock()
		if subs, ok := h.topics[sub.topic]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, sub.topic)
			}
		}
		h.mu.Unlock()
		close(sub.send)
		metrics.RealtimeSubscribers.Dec()
	})
}
