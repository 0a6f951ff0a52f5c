package channel

import (
	"context"
	"time"

	"dizimo_backend/internal/email"
	"dizimo_backend/platform/logger"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// EmailDispatcher adapts the email.Sender transport to the Dispatcher
// capability. When the message carries a payment link, a QR code of the link
// is attached so recipients can pay by scanning.
type EmailDispatcher struct {
	sender  email.Sender
	timeout time.Duration
	log     *logger.Logger
}

func NewEmailDispatcher(sender email.Sender, timeout time.Duration, log *logger.Logger) *EmailDispatcher {
	return &EmailDispatcher{sender: sender, timeout: timeout, log: log}
}

func (d *EmailDispatcher) Kind() Kind {
	return KindEmail
}

func (d *EmailDispatcher) Send(ctx context.Context, msg Message) Outcome {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var attachments []email.Attachment
	if msg.PaymentLink != "" {
		if png, err := qrcode.Encode(msg.PaymentLink, qrcode.Medium, qrImageSize); err == nil {
			attachments = append(attachments, email.Attachment{
				Content:  png,
				FileName: "pagamento.png",
				MIMEType: "image/png",
			})
		} else {
			// A broken QR must not block the reminder itself.
			d.log.Warn("payment link qr encode failed", "error", err)
		}
	}

	if err := d.sender.SendNotificationEmail(sendCtx, msg.To, msg.Subject, msg.Body, attachments...); err != nil {
		d.log.DispatchError(string(KindEmail), msg.To, err)
		return failure(err)
	}
	return success()
}
