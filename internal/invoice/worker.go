package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

// OrderLoader is satisfied by *orders.Repo.
type OrderLoader interface {
	GetOrder(ctx context.Context, orderID string) (orders.Order, error)
}

// OrderAdvancer is satisfied by *orders.Service.
type OrderAdvancer interface {
	Apply(ctx context.Context, orderID string, ev orders.Event, reason string) (orders.StatusChange, error)
}

type Worker struct {
	Orders   OrderLoader
	Advancer OrderAdvancer
	Sender   Sender
	Metrics  *metrics.Metrics
}

// ProcessTask handles one send-invoice task. Any returned error is retried by
// the queue until MaxRetry is exhausted.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		w.Metrics.InvoiceJob("malformed")
		return fmt.Errorf("decode invoice payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.OrderID == "" {
		w.Metrics.InvoiceJob("malformed")
		return fmt.Errorf("invoice payload without order id: %w", asynq.SkipRetry)
	}
	log := logx.WithContext(ctx)

	o, err := w.Orders.GetOrder(ctx, p.OrderID)
	if err != nil {
		w.Metrics.InvoiceJob("failed")
		return fmt.Errorf("load order %s: %w", p.OrderID, err)
	}

	inv, err := Render(o, p)
	if err != nil {
		w.Metrics.InvoiceJob("failed")
		return err
	}
	if err := w.Sender.Send(ctx, inv); err != nil {
		w.Metrics.InvoiceJob("failed")
		return err
	}

	ch, err := w.Advancer.Apply(ctx, p.OrderID, orders.InvoiceSent, "invoice")
	if err != nil {
		// the invoice is out; a failed promotion must not resend it
		log.Errorw("invoice sent but order not advanced",
			logx.Field("order_id", p.OrderID),
			logx.Field("error", err.Error()))
	} else if ch.Changed() {
		log.Infow("order promoted after invoice", logx.Field("order_id", p.OrderID), logx.Field("status", ch.To))
	}

	w.Metrics.InvoiceJob("sent")
	log.Infow("invoice job done",
		logx.Field("order_id", p.OrderID),
		logx.Field("transaction_id", p.TransactionID))
	return nil
}

// HandleError is the asynq ErrorHandler. It runs after every failed attempt.
func (w *Worker) HandleError(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	w.recordFailure(ctx, t, err, retried, maxRetry)
}

func (w *Worker) recordFailure(ctx context.Context, t *asynq.Task, err error, retried, maxRetry int) bool {
	fields := []logx.LogField{
		logx.Field("task", t.Type()),
		logx.Field("payload", string(t.Payload())),
		logx.Field("retried", retried),
		logx.Field("max_retry", maxRetry),
		logx.Field("error", err.Error()),
	}
	if retried >= maxRetry || errors.Is(err, asynq.SkipRetry) {
		// order status is left as is; a lost invoice never reverses a payment
		w.Metrics.InvoiceJob("dead")
		logx.WithContext(ctx).Errorw("invoice job permanently failed", fields...)
		return true
	}
	logx.WithContext(ctx).Errorw("invoice job failed, will retry", fields...)
	return false
}
