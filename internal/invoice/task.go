package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeSendInvoice = "send-invoice"
	Queue           = "invoice"

	// MaxRetry retries after the first attempt, three attempts in total.
	MaxRetry    = 2
	TaskTimeout = 30 * time.Second
	BaseDelay   = 5 * time.Second
)

type Payload struct {
	OrderID       string `json:"orderId"`
	Email         string `json:"email"`
	TransactionID string `json:"transactionId"`
}

// TaskID is unique per order and payment transaction, so re-enqueueing the
// same payment is rejected by the queue.
func TaskID(p Payload) string {
	return fmt.Sprintf("invoice:%s:%s", p.OrderID, p.TransactionID)
}

func Options(p Payload) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(Queue),
		asynq.MaxRetry(MaxRetry),
		asynq.Timeout(TaskTimeout),
		asynq.TaskID(TaskID(p)),
	}
}

func NewTask(p Payload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal invoice payload: %w", err)
	}
	return asynq.NewTask(TypeSendInvoice, b, Options(p)...), nil
}

// RetryDelay is the server's backoff: 5s, 10s, 20s, ... for retry n.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	return BaseDelay << n
}
