// Package channel defines the closed set of notification dispatchers (email,
// WhatsApp) behind a common send capability. The set is fixed; adding a
// channel means adding a variant here, not registering a plugin.
package channel

import "context"

// Kind identifies a delivery channel.
type Kind string

const (
	KindEmail    Kind = "email"
	KindWhatsApp Kind = "whatsapp"
)

// Status is the delivery outcome of a single send attempt.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Message is a fully rendered notification ready for one channel.
type Message struct {
	// To is the address actually used: an email address or a phone number,
	// depending on the dispatcher.
	To      string
	Subject string
	Body    string
	// PaymentLink, when set, lets the email dispatcher attach a QR code of
	// the link. Other channels ignore it.
	PaymentLink string
}

// Outcome maps directly onto the delivery log status columns.
type Outcome struct {
	Status       Status
	ErrorMessage string
}

// Dispatcher sends a rendered message over one channel. Implementations must
// bound their own transport calls; a hung provider becomes a failed Outcome,
// never a blocked worker.
type Dispatcher interface {
	Kind() Kind
	Send(ctx context.Context, msg Message) Outcome
}

func failure(err error) Outcome {
	return Outcome{Status: StatusFailed, ErrorMessage: err.Error()}
}

func success() Outcome {
	return Outcome{Status: StatusSent}
}
