// Package repository provides data access for the notification automation
// engine: the read-only rule store and the append-only delivery log.
package repository

import (
	"context"
	"errors"
	"time"

	"dizimo_backend/internal/channel"

	"github.com/google/uuid"
)

// Trigger is the condition class that activates a rule.
type Trigger string

const (
	TriggerUserRegistered  Trigger = "user_registered"
	TriggerPaymentReceived Trigger = "payment_received"
	TriggerDueReminder     Trigger = "payment_due_reminder"
	TriggerOverdue         Trigger = "payment_overdue"
)

// IsEventDriven reports whether the trigger fires on a push event rather
// than the daily sweep.
func (t Trigger) IsEventDriven() bool {
	return t == TriggerUserRegistered || t == TriggerPaymentReceived
}

// Rule is a notification automation rule. Rules are written by the admin UI;
// the engine only ever reads them.
type Rule struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	EventTrigger    Trigger   `json:"eventTrigger"`
	DaysOffset      int       `json:"daysOffset"`
	MessageTemplate string    `json:"messageTemplate"`
	SendViaEmail    bool      `json:"sendViaEmail"`
	SendViaWhatsapp bool      `json:"sendViaWhatsapp"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Channels returns the enabled dispatch channels. A rule with no channels is
// legal; it simply produces no dispatch.
func (r Rule) Channels() []channel.Kind {
	kinds := make([]channel.Kind, 0, 2)
	if r.SendViaEmail {
		kinds = append(kinds, channel.KindEmail)
	}
	if r.SendViaWhatsapp {
		kinds = append(kinds, channel.KindWhatsApp)
	}
	return kinds
}

// LogStatus is the delivery status recorded for one attempt.
type LogStatus string

const (
	LogStatusPending LogStatus = "pending"
	LogStatusSent    LogStatus = "sent"
	LogStatusFailed  LogStatus = "failed"
)

// LogOrigin distinguishes gated automatic attempts from operator resends.
type LogOrigin string

const (
	// OriginAutomatic covers both the daily sweep and push-triggered sends;
	// these are subject to the once-per-day uniqueness gate.
	OriginAutomatic LogOrigin = "automatic"
	// OriginManual marks operator-initiated resends, exempt from the gate.
	OriginManual LogOrigin = "manual"
)

// LogEntry is one row of the append-only delivery log.
type LogEntry struct {
	ID               uuid.UUID    `json:"id"`
	RuleID           *uuid.UUID   `json:"ruleId,omitempty"`
	UserID           uuid.UUID    `json:"userId"`
	UserEmail        string       `json:"userEmail"`
	UserName         string       `json:"userName"`
	NotificationType string       `json:"notificationType"`
	Channel          channel.Kind `json:"channel"`
	Status           LogStatus    `json:"status"`
	Origin           LogOrigin    `json:"origin"`
	Recipient        string       `json:"recipient"`
	Subject          *string      `json:"subject,omitempty"`
	MessageContent   string       `json:"messageContent"`
	ErrorMessage     *string      `json:"errorMessage,omitempty"`
	SendDate         time.Time    `json:"sendDate"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// AttemptParams carries everything needed to record a send attempt.
type AttemptParams struct {
	RuleID           *uuid.UUID
	UserID           uuid.UUID
	UserEmail        string
	UserName         string
	NotificationType string
	Channel          channel.Kind
	Recipient        string
	Subject          *string
	MessageContent   string
	// SendDate is the calendar day (operator timezone) the attempt belongs to.
	SendDate time.Time
}

// LogFilter narrows the operator-facing log listing.
type LogFilter struct {
	Search     string
	Channel    string
	Status     string
	TypePrefix string
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

// ErrDuplicateSend is returned when the uniqueness gate rejects an automatic
// attempt because one already exists for the same rule, user, channel and day.
var ErrDuplicateSend = errors.New("notification already sent today")

// ErrLogNotFound is returned when a delivery log row does not exist.
var ErrLogNotFound = errors.New("delivery log entry not found")

// RuleStore reads notification rules. Writes happen in the admin UI, outside
// this service.
type RuleStore interface {
	ListActive(ctx context.Context) ([]Rule, error)
	ListActiveByTrigger(ctx context.Context, trigger Trigger) ([]Rule, error)
	List(ctx context.Context) ([]Rule, error)
}

// DeliveryLog is the append-only record of every send attempt and the dedup
// source of truth.
type DeliveryLog interface {
	// BeginAutomaticAttempt inserts the pending gate row for an automatic
	// send. Returns ErrDuplicateSend when the uniqueness constraint rejects
	// the insert; any other error is an infrastructure failure and aborts
	// the batch.
	BeginAutomaticAttempt(ctx context.Context, p AttemptParams) (uuid.UUID, error)
	// FinalizeAttempt records the dispatch outcome on the gate row.
	FinalizeAttempt(ctx context.Context, id uuid.UUID, status LogStatus, errorMessage *string) error
	// InsertManualAttempt appends an operator-initiated resend row. Never
	// gated.
	InsertManualAttempt(ctx context.Context, p AttemptParams, status LogStatus, errorMessage *string) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (LogEntry, error)
	List(ctx context.Context, f LogFilter) ([]LogEntry, int, error)
}
