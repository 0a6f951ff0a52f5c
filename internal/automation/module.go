// Package automation wires the notification automation engine: rule and log
// repositories, the orchestrating service, the admin HTTP surface and the
// event subscriptions that feed push triggers into the task queue.
package automation

import (
	"context"

	"dizimo_backend/internal/automation/handler"
	"dizimo_backend/internal/automation/ports"
	"dizimo_backend/internal/automation/repository"
	"dizimo_backend/internal/automation/service"
	"dizimo_backend/internal/billing"
	"dizimo_backend/internal/channel"
	"dizimo_backend/internal/directory"
	"dizimo_backend/internal/events"
	apphttp "dizimo_backend/internal/http"
	"dizimo_backend/internal/scheduler"
	"dizimo_backend/platform/config"
	"dizimo_backend/platform/logger"
	"dizimo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskEnqueuer persists push triggers into the task queue so they survive a
// process crash between event and dispatch.
type TaskEnqueuer interface {
	EnqueueUserRegistered(ctx context.Context, payload scheduler.UserRegisteredPayload) error
	EnqueuePaymentConfirmed(ctx context.Context, payload scheduler.PaymentConfirmedPayload) error
}

// Module is the automation bounded context.
type Module struct {
	svc      *service.Service
	handler  *handler.HTTPHandler
	enqueuer TaskEnqueuer
	log      *logger.Logger
}

func New(
	pool *pgxpool.Pool,
	dispatchers []channel.Dispatcher,
	enqueuer TaskEnqueuer,
	cfg config.EngineConfig,
	val *validator.Validator,
	log *logger.Logger,
) (*Module, error) {
	var dir ports.UserDirectory = directory.NewRepository(pool)
	var ledger ports.BillingLedger = billing.NewRepository(pool)

	svc, err := service.NewService(
		repository.NewRuleRepository(pool),
		repository.NewLogRepository(pool),
		dir, ledger, dispatchers, cfg, log,
	)
	if err != nil {
		return nil, err
	}

	return &Module{
		svc:      svc,
		handler:  handler.NewHTTPHandler(svc, val),
		enqueuer: enqueuer,
		log:      log,
	}, nil
}

func (m *Module) Name() string { return "automation" }

// Service exposes the engine for the scheduler worker binary.
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)
}

// RegisterHandlers subscribes the push triggers on the event bus. With a task
// enqueuer present, events are re-queued as asynq tasks and handled by the
// worker binary; without one the engine handles them inline.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.UserRegistered{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.UserRegistered)
		if !ok {
			return nil
		}
		if m.enqueuer == nil {
			_, err := m.svc.HandleUserRegistered(ctx, ev)
			return err
		}
		return m.enqueuer.EnqueueUserRegistered(ctx, scheduler.UserRegisteredPayload{
			UserID:       ev.UserID.String(),
			RegisteredAt: ev.RegisteredAt,
		})
	}))

	bus.Subscribe(events.PaymentConfirmed{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.PaymentConfirmed)
		if !ok {
			return nil
		}
		if m.enqueuer == nil {
			_, err := m.svc.HandlePaymentConfirmed(ctx, ev)
			return err
		}
		return m.enqueuer.EnqueuePaymentConfirmed(ctx, scheduler.PaymentConfirmedPayload{
			UserID:      ev.UserID.String(),
			AmountCents: ev.AmountCents,
			PaidAt:      ev.PaidAt,
		})
	}))
}

var _ apphttp.Module = (*Module)(nil)
