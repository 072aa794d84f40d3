package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/zeromicro/go-zero/core/logx"
)

// TaskClient is satisfied by *asynq.Client.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Enqueuer struct {
	Client TaskClient
}

// Enqueue schedules an invoice for the order. A task already queued for the
// same payment counts as success.
func (e *Enqueuer) Enqueue(ctx context.Context, p Payload) error {
	task, err := NewTask(p)
	if err != nil {
		return err
	}
	info, err := e.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logx.WithContext(ctx).Infow("invoice task already queued",
			logx.Field("order_id", p.OrderID),
			logx.Field("task_id", TaskID(p)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue invoice: %w", err)
	}
	logx.WithContext(ctx).Infow("invoice task enqueued",
		logx.Field("order_id", p.OrderID),
		logx.Field("task_id", info.ID),
		logx.Field("queue", info.Queue))
	return nil
}
