// Package ports declares the collaborator interfaces the automation engine
// depends on. The engine owns rules and the delivery log; member contact data
// and billing schedules belong to other modules and are reached through these
// narrow ports.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Member is the directory view of one church member: who they are and how to
// reach them. Phone is E.164 or empty when the member has no WhatsApp number.
type Member struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Phone          string
	Locale         string
	ChurchName     string
	PaymentLinkURL string
}

// HasContactFor reports whether the member can be reached on any of the given
// channels. emailEnabled/whatsappEnabled mirror the rule's channel flags.
func (m Member) HasContactFor(emailEnabled, whatsappEnabled bool) bool {
	if emailEnabled && m.Email != "" {
		return true
	}
	if whatsappEnabled && m.Phone != "" {
		return true
	}
	return false
}

// ErrMemberNotFound is returned when a member id does not resolve.
var ErrMemberNotFound = errors.New("member not found")

// UserDirectory resolves member identity and contact data.
type UserDirectory interface {
	ListActiveMembers(ctx context.Context) ([]Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (Member, error)
}

// BillingSnapshot is the ledger view of one member's tithe schedule.
type BillingSnapshot struct {
	// NextDueDate is the due date of the member's open tithe, nil when no
	// payment is scheduled. Date-only; time of day is not meaningful.
	NextDueDate *time.Time
	// AmountCents is the open tithe amount, or the last paid amount when
	// nothing is open. Zero when the member has no billing history.
	AmountCents int64
	// LastPaidAt is when the member last completed a payment, nil if never.
	LastPaidAt *time.Time
}

// BillingLedger reads tithe schedules and payment history.
type BillingLedger interface {
	// Snapshots returns the billing snapshot for each of the given members.
	// Members with no billing rows are absent from the result map.
	Snapshots(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]BillingSnapshot, error)
}
