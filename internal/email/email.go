// Package email provides the email transport adapters used by the
// notification dispatcher. The engine depends only on the Sender interface;
// the concrete provider (SMTP or Brevo) is chosen from configuration.
package email

import (
	"context"
	"fmt"

	"dizimo_backend/platform/config"
)

// Attachment represents a file attachment for an email.
type Attachment struct {
	Content  []byte // raw file bytes (base64-encoded for Brevo)
	FileName string // e.g. "pagamento.png"
	MIMEType string // e.g. "image/png"
}

// Sender delivers a single rendered notification to one address.
type Sender interface {
	SendNotificationEmail(ctx context.Context, toEmail, subject, bodyText string, attachments ...Attachment) error
}

// NoopSender is used when email delivery is disabled; sends succeed silently.
type NoopSender struct{}

func (NoopSender) SendNotificationEmail(context.Context, string, string, string, ...Attachment) error {
	return nil
}

// NewSender builds the configured Sender implementation.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	switch cfg.GetEmailProvider() {
	case "smtp":
		if cfg.GetSMTPHost() == "" {
			return nil, fmt.Errorf("EMAIL_PROVIDER=smtp but SMTP_HOST is empty")
		}
		return NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		), nil
	case "brevo":
		if cfg.GetBrevoAPIKey() == "" {
			return nil, fmt.Errorf("EMAIL_PROVIDER=brevo but BREVO_API_KEY is empty")
		}
		return NewBrevoSender(cfg.GetBrevoAPIKey(), cfg.GetEmailFromName(), cfg.GetEmailFromAddress()), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.GetEmailProvider())
	}
}
