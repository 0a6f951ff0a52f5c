package channel

import (
	"context"
	"time"

	"dizimo_backend/internal/whatsapp"
	"dizimo_backend/platform/logger"
)

// WhatsAppDispatcher adapts the gowa gateway client to the Dispatcher
// capability. WhatsApp messages carry no subject; the rendered body is sent
// as-is.
type WhatsAppDispatcher struct {
	client  *whatsapp.Client
	timeout time.Duration
	log     *logger.Logger
}

func NewWhatsAppDispatcher(client *whatsapp.Client, timeout time.Duration, log *logger.Logger) *WhatsAppDispatcher {
	return &WhatsAppDispatcher{client: client, timeout: timeout, log: log}
}

func (d *WhatsAppDispatcher) Kind() Kind {
	return KindWhatsApp
}

func (d *WhatsAppDispatcher) Send(ctx context.Context, msg Message) Outcome {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.client.SendMessage(sendCtx, msg.To, msg.Body); err != nil {
		d.log.DispatchError(string(KindWhatsApp), msg.To, err)
		return failure(err)
	}
	return success()
}
