package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/zeromicro/go-zero/core/logx"
)

// Sender delivers a rendered invoice. Errors are retried by the queue.
type Sender interface {
	Send(ctx context.Context, inv Invoice) error
}

// LogSender stands in for the mail provider and writes the invoice to the log.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, inv Invoice) error {
	if inv.To == "" {
		return errors.New("invoice has no recipient")
	}
	logx.WithContext(ctx).Infow("invoice sent",
		logx.Field("to", inv.To),
		logx.Field("subject", inv.Subject),
		logx.Field("bytes", len(inv.Body)))
	return nil
}

// BreakerSender guards a Sender with a circuit breaker and a per-call timeout.
type BreakerSender struct {
	next    Sender
	cb      *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
}

func NewBreakerSender(next Sender, timeout time.Duration) *BreakerSender {
	st := gobreaker.Settings{
		Name:        "invoice-sender",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logx.Infow("circuit breaker state changed",
				logx.Field("name", name),
				logx.Field("from", from.String()),
				logx.Field("to", to.String()))
		},
	}
	return &BreakerSender{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](st), timeout: timeout}
}

func (b *BreakerSender) Send(ctx context.Context, inv Invoice) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		cctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return struct{}{}, b.next.Send(cctx, inv)
	})
	if err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}

func (b *BreakerSender) State() gobreaker.State { return b.cb.State() }
