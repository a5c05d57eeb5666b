package broadcast

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives payloads for a single topic on C. C is closed by
// Hub.Unsubscribe.
type Subscriber struct {
	Topic   string
	C       chan []byte
	dropped atomic.Int64
}

// Dropped returns how many payloads this subscriber missed because it was slow.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Hub is the in-process Sink behind the websocket endpoints.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscriber]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[string]map[*Subscriber]struct{}),
		buffer: buffer,
	}
}

func (h *Hub) Subscribe(topic string) *Subscriber {
	s := &Subscriber{Topic: topic, C: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscriber]struct{})
	}
	h.subs[topic][s] = struct{}{}
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.Topic]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.Topic)
	}
	close(s.C)
}

// Send never blocks: a subscriber whose buffer is full misses the payload.
func (h *Hub) Send(topic string, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[topic] {
		select {
		case s.C <- payload:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// Count returns the number of subscribers on topic.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
