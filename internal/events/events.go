// Package events publishes order lifecycle events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderDeleted       = "order.deleted"
)

// Event is the message written for every order change
type Event struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	OrderID   string         `json:"order_id"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

// New stamps an event with a fresh id and the current time
func New(eventType, orderID string, payload map[string]any) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// Publisher delivers events. Publishing is best effort; callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	r.Events = append(r.Events, evt)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types lists the recorded event types in order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
