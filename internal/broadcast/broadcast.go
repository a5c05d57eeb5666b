// Package broadcast fans processed alerts out to real-time subscribers.
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ahmetk3436/netwatch/internal/models"
	"github.com/bytedance/sonic"
)

// TopicPrefix is the global alert topic; category topics hang below it.
const TopicPrefix = "/topic/alerts"

// Sink delivers an encoded alert to one transport.
type Sink interface {
	Send(topic string, payload []byte) error
}

// TopicsFor returns the global topic plus the per-category topic when the
// alert has a category.
func TopicsFor(a *models.Alert) []string {
	topics := []string{TopicPrefix}
	if a.Category != "" {
		topics = append(topics, TopicPrefix+"/"+a.Category.Topic())
	}
	return topics
}

type message struct {
	topics  []string
	payload []byte
}

// Dispatcher decouples publishing from delivery. Publish never blocks; when
// the queue is full the message is dropped and counted.
type Dispatcher struct {
	sinks   []Sink
	queue   chan message
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		sinks: sinks,
		queue: make(chan message, buffer),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

// Publish enqueues the alert for every topic it belongs to and reports
// whether it was accepted.
func (d *Dispatcher) Publish(a *models.Alert) bool {
	payload, err := sonic.Marshal(a)
	if err != nil {
		slog.Error("Broadcast encode failed", "alert_id", a.AlertID, "error", err)
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- message{topics: TopicsFor(a), payload: payload}:
		return true
	default:
		d.dropped.Add(1)
		slog.Warn("Broadcast queue full, dropping alert", "alert_id", a.AlertID)
		return false
	}
}

// Dropped returns how many alerts were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting work, drains the queue and waits for the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for msg := range d.queue {
		for _, topic := range msg.topics {
			for _, sink := range d.sinks {
				if err := sink.Send(topic, msg.payload); err != nil {
					slog.Warn("Broadcast send failed", "topic", topic, "error", err)
				}
			}
		}
	}
}
