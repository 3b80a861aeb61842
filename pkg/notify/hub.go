// Package notify fans lifecycle events out to in-process subscribers.
// Delivery is best-effort: a slow subscriber loses its oldest pending
// notifications rather than blocking publishers.
package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/subseq/zini/pkg/events"
)

const DefaultBufferSize = 64

// Notification is the fan-out payload. The key fields are denormalized from
// the originating event so filters match without inspecting the payload.
type Notification struct {
	Type   events.EventType `json:"type"`
	TaskID string           `json:"task_id,omitempty"`
	FlowID string           `json:"flow_id,omitempty"`
	JobID  string           `json:"job_id,omitempty"`
	Event  any              `json:"event"`
}

// Filter selects which notifications a subscription receives. Empty fields
// match everything; set fields must all match.
type Filter struct {
	TaskID string
	FlowID string
	JobID  string
}

func (f Filter) matches(n Notification) bool {
	if f.TaskID != "" && f.TaskID != n.TaskID {
		return false
	}

	if f.FlowID != "" && f.FlowID != n.FlowID {
		return false
	}

	if f.JobID != "" && f.JobID != n.JobID {
		return false
	}

	return true
}

type Subscription struct {
	id     string
	filter Filter
	ch     chan Notification
	missed atomic.Uint64
	hub    *Hub
	once   sync.Once
}

// C returns the notification channel. It is closed when the subscription or
// the hub is closed.
func (s *Subscription) C() <-chan Notification {
	return s.ch
}

// Missed reports how many notifications were dropped because the
// subscriber's buffer was full.
func (s *Subscription) Missed() uint64 {
	return s.missed.Load()
}

// Close detaches the subscription from the hub and closes its channel.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.id)
}

// Hub is the fan-out point. Publish never blocks: when a subscriber's
// buffer is full the oldest pending notification is dropped and the
// subscription's missed counter incremented.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int
	closed     bool
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return NewHubWithBuffer(logger, DefaultBufferSize)
}

func NewHubWithBuffer(logger *slog.Logger, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Hub{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

func (h *Hub) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		id:     uuid.New().String(),
		filter: filter,
		ch:     make(chan Notification, h.bufferSize),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)

		return sub
	}

	h.subs[sub.id] = sub

	return sub
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}

	delete(h.subs, id)
	sub.once.Do(func() { close(sub.ch) })
}

// Publish delivers the notification to every matching subscription without
// blocking.
func (h *Hub) Publish(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for _, sub := range h.subs {
		if !sub.filter.matches(n) {
			continue
		}

		h.deliver(sub, n)
	}
}

func (h *Hub) deliver(sub *Subscription, n Notification) {
	select {
	case sub.ch <- n:
		return
	default:
	}

	// Buffer full: evict the oldest pending notification to make room.
	select {
	case <-sub.ch:
		sub.missed.Add(1)
	default:
	}

	select {
	case sub.ch <- n:
	default:
		sub.missed.Add(1)

		h.logger.Warn("dropped notification for slow subscriber",
			"subscription_id", sub.id, "event_type", n.Type)
	}
}

// SubscriberCount reports how many subscriptions are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close detaches and closes every subscription. Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}
