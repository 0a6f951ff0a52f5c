// Package events carries domain events between modules without direct
// coupling. The automation engine subscribes here for the membership and
// billing events that feed its push triggers; concrete event types live in
// internal/events.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event crossing the bus.
type Event interface {
	// EventName identifies the event type, dotted by domain
	// (e.g. "billing.payment.confirmed").
	EventName() string
	// OccurredAt is the moment the event happened in the source domain.
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp; event types embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes published events to the handlers subscribed under the event's
// name.
type Bus interface {
	// Publish fires the event asynchronously; handler errors are logged,
	// never returned.
	Publish(ctx context.Context, event Event)

	// PublishSync runs every handler inline and returns their combined
	// errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under an Event.EventName value.
	Subscribe(eventName string, handler Handler)
}
