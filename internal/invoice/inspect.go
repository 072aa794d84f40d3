package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type QueueStats struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Completed int    `json:"completed"`
	Processed int    `json:"processedToday"`
	Failed    int    `json:"failedToday"`
	Paused    bool   `json:"paused"`
}

// DeadJob is an invoice task that exhausted its retries.
type DeadJob struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"orderId"`
	TransactionID string    `json:"transactionId"`
	Retried       int       `json:"retried"`
	MaxRetry      int       `json:"maxRetry"`
	LastError     string    `json:"lastError"`
	LastFailedAt  time.Time `json:"lastFailedAt"`
}

// QueueInspector is satisfied by *asynq.Inspector.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
}

type Inspector struct {
	in QueueInspector
}

func NewInspector(in QueueInspector) *Inspector { return &Inspector{in: in} }

func (i *Inspector) Stats() (QueueStats, error) {
	qi, err := i.in.GetQueueInfo(Queue)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return QueueStats{Queue: Queue}, nil
	}
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue info: %w", err)
	}
	return toStats(qi), nil
}

func (i *Inspector) Dead(limit int) ([]DeadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	tasks, err := i.in.ListArchivedTasks(Queue, asynq.PageSize(limit))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return []DeadJob{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archived tasks: %w", err)
	}
	out := make([]DeadJob, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toDeadJob(t))
	}
	return out, nil
}

// Retry moves an archived task back to pending. An unknown id is NotFound.
func (i *Inspector) Retry(id string) error {
	err := i.in.RunTask(Queue, id)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return apperr.NotFound("job %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("run task %s: %w", id, err)
	}
	return nil
}

func toStats(qi *asynq.QueueInfo) QueueStats {
	return QueueStats{
		Queue:     qi.Queue,
		Size:      qi.Size,
		Pending:   qi.Pending,
		Active:    qi.Active,
		Scheduled: qi.Scheduled,
		Retry:     qi.Retry,
		Archived:  qi.Archived,
		Completed: qi.Completed,
		Processed: qi.Processed,
		Failed:    qi.Failed,
		Paused:    qi.Paused,
	}
}

func toDeadJob(t *asynq.TaskInfo) DeadJob {
	var p Payload
	_ = json.Unmarshal(t.Payload, &p)
	return DeadJob{
		ID:            t.ID,
		OrderID:       p.OrderID,
		TransactionID: p.TransactionID,
		Retried:       t.Retried,
		MaxRetry:      t.MaxRetry,
		LastError:     t.LastErr,
		LastFailedAt:  t.LastFailedAt,
	}
}
