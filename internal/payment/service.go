package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/invoice"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

type Store interface {
	Apply(ctx context.Context, n Notification, steps Steps) (Applied, error)
}

type InvoiceQueue interface {
	Enqueue(ctx context.Context, p invoice.Payload) error
}

// ChangePublisher is satisfied by *orders.Service.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ch orders.StatusChange, reason string)
}

// MaxAmount is the first amount the NUMERIC(12,2) ledger column cannot hold.
var MaxAmount = decimal.New(1, 10)

type Service struct {
	Store    Store
	Invoices InvoiceQueue
	Orders   ChangePublisher
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Process applies a payment notification to its order. On success an invoice
// job is enqueued inside the same transaction, so a failed enqueue leaves the
// order untouched and the caller can retry.
func (s *Service) Process(ctx context.Context, n Notification) (Result, error) {
	if n.Outcome == "" {
		n.Outcome = OutcomeSuccess
	}
	if n.TransactionID == "" {
		n.TransactionID = fmt.Sprintf("tx-%d", s.now().UnixMilli())
	}
	switch n.Outcome {
	case OutcomeSuccess, OutcomeFailed, OutcomePending:
	default:
		return Result{}, apperr.Validation("invalid payment status %q", n.Outcome)
	}
	if !n.Amount.IsPositive() {
		return Result{}, apperr.Validation("amount must be positive")
	}
	if n.Amount.GreaterThanOrEqual(MaxAmount) {
		return Result{}, apperr.Validation("amount must be less than %s", MaxAmount.String())
	}

	log := logx.WithContext(ctx)
	applied, err := s.Store.Apply(ctx, n, Steps{
		Decide: func(ctx context.Context, st OrderState) (orders.Status, error) {
			if !n.Amount.Equal(st.Total) {
				logx.WithContext(ctx).Sloww("payment amount does not match order total",
					logx.Field("order_id", st.OrderID),
					logx.Field("amount", n.Amount.String()),
					logx.Field("total", st.Total.String()),
					logx.Field("transaction_id", n.TransactionID))
			}
			return orders.Next(st.Status, n.Outcome.Event())
		},
		BeforeCommit: func(ctx context.Context, a Applied) error {
			// only the payment that moves the order out of PENDING invoices it
			if !paidNow(a.Change) {
				return nil
			}
			return s.Invoices.Enqueue(ctx, invoice.Payload{
				OrderID:       a.State.OrderID,
				Email:         a.State.Email,
				TransactionID: n.TransactionID,
			})
		},
	})
	if err != nil {
		s.Metrics.Webhook(string(n.Outcome), webhookResult(err))
		if !apperr.IsDomain(err) {
			log.Errorw("payment notification failed",
				logx.Field("order_id", n.OrderID),
				logx.Field("transaction_id", n.TransactionID),
				logx.Field("error", err.Error()))
		}
		return Result{}, apperr.Wrap("process payment", err)
	}

	if applied.Duplicate {
		s.Metrics.Webhook(string(n.Outcome), "duplicate")
		log.Infow("duplicate payment notification ignored",
			logx.Field("order_id", n.OrderID),
			logx.Field("transaction_id", n.TransactionID))
	} else {
		s.Metrics.Webhook(string(n.Outcome), "applied")
		log.Infow("payment notification applied",
			logx.Field("order_id", n.OrderID),
			logx.Field("transaction_id", n.TransactionID),
			logx.Field("outcome", n.Outcome),
			logx.Field("from", applied.Change.From),
			logx.Field("to", applied.Change.To))
		if applied.Change.Changed() {
			s.Orders.PublishChange(ctx, applied.Change, "payment")
		}
	}

	return Result{
		Order: OrderSummary{ID: applied.State.OrderID, Status: applied.Change.To, Total: applied.State.Total},
		Payment: PaymentEcho{
			TransactionID: n.TransactionID,
			Status:        n.Outcome,
			Amount:        n.Amount,
			PaymentMethod: n.PaymentMethod,
			ReceivedAt:    s.now().UTC(),
		},
		Duplicate: applied.Duplicate,
	}, nil
}

func paidNow(ch orders.StatusChange) bool {
	return ch.From == orders.StatusPending && ch.To == orders.StatusProcessing
}

func webhookResult(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "rejected"
	default:
		return "error"
	}
}
