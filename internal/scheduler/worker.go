package scheduler

import (
	"context"
	"fmt"
	"time"

	"dizimo_backend/internal/automation/service"
	"dizimo_backend/internal/events"
	"dizimo_backend/platform/config"
	"dizimo_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes automation tasks: the periodic sweep and the durable push
// triggers.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	svc    *service.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, svc *service.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		svc:    svc,
		log:    log,
	}

	mux.HandleFunc(TaskDailySweep, w.handleDailySweep)
	mux.HandleFunc(TaskUserRegistered, w.handleUserRegistered)
	mux.HandleFunc(TaskPaymentConfirmed, w.handlePaymentConfirmed)

	return w, nil
}

func (w *Worker) handleDailySweep(ctx context.Context, task *asynq.Task) error {
	summary, err := w.svc.RunBatch(ctx)
	if err != nil {
		w.log.Error("daily sweep aborted", "error", err)
		return err
	}
	w.log.Info("daily sweep finished",
		"sent", summary.Sent, "skipped", summary.Skipped, "failed", summary.Failed)
	return nil
}

func (w *Worker) handleUserRegistered(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseUserRegisteredPayload(task)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return err
	}

	_, err = w.svc.HandleUserRegistered(ctx, events.UserRegistered{
		BaseEvent:    events.NewBaseEvent(),
		UserID:       userID,
		RegisteredAt: payload.RegisteredAt,
	})
	return err
}

func (w *Worker) handlePaymentConfirmed(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePaymentConfirmedPayload(task)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return err
	}

	_, err = w.svc.HandlePaymentConfirmed(ctx, events.PaymentConfirmed{
		BaseEvent:   events.NewBaseEvent(),
		UserID:      userID,
		AmountCents: payload.AmountCents,
		PaidAt:      payload.PaidAt,
	})
	return err
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// NewPeriodic builds the cron scheduler that enqueues the daily sweep.
// The cronspec is evaluated in the operator timezone so "0 8 * * *" means
// eight in the morning local to the church office.
func NewPeriodic(cfg config.SchedulerConfig, engineCfg config.EngineConfig, log *logger.Logger) (*asynq.Scheduler, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(engineCfg.GetTimezone())
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", engineCfg.GetTimezone(), err)
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	periodic := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: loc})
	if _, err := periodic.Register(cfg.GetSweepCronspec(), NewDailySweepTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register sweep cron: %w", err)
	}
	log.Info("daily sweep scheduled", "cronspec", cfg.GetSweepCronspec(), "timezone", engineCfg.GetTimezone())

	return periodic, nil
}
