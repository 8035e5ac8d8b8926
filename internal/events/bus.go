// Package events carries domain events (task lifecycle, conversation
// lifecycle) from services to outbound publishers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the services layer.
const (
	TaskCreated         = "task.created"
	TaskUpdated         = "task.updated"
	TaskCompleted       = "task.completed"
	TaskDeleted         = "task.deleted"
	RecurringScheduled  = "task.recurring_scheduled"
	ConversationDeleted = "conversation.deleted"
)

// Event is one domain occurrence. Payload is marshalled as-is into the
// webhook body.
type Event struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Bus is a bounded in-process event queue. Publishing never blocks the
// request path; when the buffer is full the event is dropped and counted.
// Construct one per process and inject it where needed.
type Bus struct {
	ch      chan Event
	log     zerolog.Logger
	dropped atomic.Int64

	closeOnce sync.Once
}

// NewBus creates a bus with the given buffer size.
func NewBus(size int, log zerolog.Logger) *Bus {
	if size <= 0 {
		size = 256
	}
	return &Bus{ch: make(chan Event, size), log: log}
}

// Publish enqueues the event, stamping OccurredAt if unset.
func (b *Bus) Publish(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case b.ch <- ev:
	default:
		n := b.dropped.Add(1)
		b.log.Warn().
			Str("type", ev.Type).
			Int64("dropped_total", n).
			Msg("event buffer full, dropping event")
	}
}

// Events exposes the consumer side of the bus.
func (b *Bus) Events() <-chan Event { return b.ch }

// Dropped returns how many events were discarded due to a full buffer.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Close stops the bus. Publish must not be called after Close.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.ch) })
}
