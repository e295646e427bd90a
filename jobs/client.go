package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Client enqueues bizcore tasks.
type Client struct {
	client *asynq.Client
}

// NewClient constructs a Client over redisOpts.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueLowStock implements the inventory low-stock notifier.
func (c *Client) EnqueueLowStock(ctx context.Context, payload LowStockPayload) error {
	task, err := NewLowStockTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueuePayslipNotice implements the payroll notifier.
func (c *Client) EnqueuePayslipNotice(ctx context.Context, payload PayslipNoticePayload) error {
	task, err := NewPayslipNoticeTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueOverdueSweep enqueues a one-off overdue sweep as of asOf.
func (c *Client) EnqueueOverdueSweep(ctx context.Context, asOf time.Time) (*asynq.TaskInfo, error) {
	task, err := NewOverdueSweepTask(asOf)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info, nil
}

// Close releases the redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}
