package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"

	"dizimo_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues automation tasks. A nil Client is a valid no-op so callers
// in environments without redis do not need to branch.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDailySweep queues an immediate sweep run, used by operators who do
// not want to wait for the cron tick.
func (c *Client) EnqueueDailySweep(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.EnqueueContext(ctx, NewDailySweepTask(), asynq.Queue(c.queue))
	return err
}

// EnqueueUserRegistered persists a registration push trigger. Once this
// returns, a process crash cannot lose the notification.
func (c *Client) EnqueueUserRegistered(ctx context.Context, payload UserRegisteredPayload) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewUserRegisteredTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// EnqueuePaymentConfirmed persists a payment push trigger.
func (c *Client) EnqueuePaymentConfirmed(ctx context.Context, payload PaymentConfirmedPayload) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewPaymentConfirmedTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
