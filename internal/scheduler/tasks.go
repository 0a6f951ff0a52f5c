// Package scheduler runs the asynq task queue: the periodic daily sweep and
// the durable push-trigger tasks that carry registration and payment events
// across process restarts.
package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskDailySweep = "automation.sweep"

const TaskUserRegistered = "automation.user_registered"

const TaskPaymentConfirmed = "automation.payment_confirmed"

type UserRegisteredPayload struct {
	UserID       string    `json:"userId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type PaymentConfirmedPayload struct {
	UserID      string    `json:"userId"`
	AmountCents int64     `json:"amountCents"`
	PaidAt      time.Time `json:"paidAt"`
}

// NewDailySweepTask builds the periodic sweep task. It carries no payload;
// the sweep always evaluates the full rule set.
func NewDailySweepTask() *asynq.Task {
	return asynq.NewTask(TaskDailySweep, nil)
}

func NewUserRegisteredTask(payload UserRegisteredPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUserRegistered, data), nil
}

func ParseUserRegisteredPayload(task *asynq.Task) (UserRegisteredPayload, error) {
	var payload UserRegisteredPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return UserRegisteredPayload{}, err
	}
	return payload, nil
}

func NewPaymentConfirmedTask(payload PaymentConfirmedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentConfirmed, data), nil
}

func ParsePaymentConfirmedPayload(task *asynq.Task) (PaymentConfirmedPayload, error) {
	var payload PaymentConfirmedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PaymentConfirmedPayload{}, err
	}
	return payload, nil
}
