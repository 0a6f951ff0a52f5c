// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"dizimo_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Membership Domain Events
// =============================================================================

// UserRegistered is published when a member completes registration.
// The registration flow itself lives outside this service; it reaches the
// automation engine only through this event.
type UserRegistered struct {
	BaseEvent
	UserID       uuid.UUID `json:"userId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func (e UserRegistered) EventName() string { return "membership.user.registered" }

// =============================================================================
// Billing Domain Events
// =============================================================================

// PaymentConfirmed is published when the payment ledger confirms a tithe
// payment. AmountCents carries the confirmed amount for template rendering.
type PaymentConfirmed struct {
	BaseEvent
	UserID      uuid.UUID `json:"userId"`
	AmountCents int64     `json:"amountCents"`
	PaidAt      time.Time `json:"paidAt"`
}

func (e PaymentConfirmed) EventName() string { return "billing.payment.confirmed" }
