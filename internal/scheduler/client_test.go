package scheduler

import (
	"context"
	"testing"
	"time"

	"dizimo_backend/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		RedisURL:       "redis://" + mr.Addr(),
		AsynqQueueName: "automation",
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(&config.Config{}); err == nil {
		t.Fatalf("missing redis url must be rejected")
	}
}

func TestEnqueueDailySweep(t *testing.T) {
	client := testClient(t)
	if err := client.EnqueueDailySweep(context.Background()); err != nil {
		t.Fatalf("EnqueueDailySweep: %v", err)
	}
}

func TestEnqueuePushTriggers(t *testing.T) {
	client := testClient(t)

	err := client.EnqueueUserRegistered(context.Background(), UserRegisteredPayload{
		UserID:       uuid.NewString(),
		RegisteredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("EnqueueUserRegistered: %v", err)
	}

	err = client.EnqueuePaymentConfirmed(context.Background(), PaymentConfirmedPayload{
		UserID:      uuid.NewString(),
		AmountCents: 15000,
		PaidAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("EnqueuePaymentConfirmed: %v", err)
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	if err := client.EnqueueDailySweep(context.Background()); err != nil {
		t.Fatalf("nil client must be a no-op, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("nil client Close must be a no-op, got %v", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	payload := PaymentConfirmedPayload{
		UserID:      uuid.NewString(),
		AmountCents: 25050,
		PaidAt:      time.Now().UTC().Truncate(time.Second),
	}
	task, err := NewPaymentConfirmedTask(payload)
	if err != nil {
		t.Fatalf("NewPaymentConfirmedTask: %v", err)
	}
	parsed, err := ParsePaymentConfirmedPayload(task)
	if err != nil {
		t.Fatalf("ParsePaymentConfirmedPayload: %v", err)
	}
	if parsed.UserID != payload.UserID || parsed.AmountCents != payload.AmountCents {
		t.Fatalf("payload round trip mismatch: %+v != %+v", parsed, payload)
	}
}
