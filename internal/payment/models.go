package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// Event maps a payment outcome onto the order state machine.
func (o Outcome) Event() orders.Event {
	switch o {
	case OutcomeSuccess:
		return orders.PaymentSucceeded
	case OutcomeFailed:
		return orders.PaymentFailed
	case OutcomePending:
		return orders.PaymentPending
	}
	return orders.Event("Payment:" + string(o))
}

// Notification is one inbound payment result.
type Notification struct {
	OrderID       string
	Outcome       Outcome
	Amount        decimal.Decimal
	TransactionID string
	PaymentMethod string
}

// OrderState is the locked order row a notification is applied to.
type OrderState struct {
	OrderID string
	UserID  string
	Email   string
	Total   decimal.Decimal
	Status  orders.Status
}

type Applied struct {
	State     OrderState
	Change    orders.StatusChange
	Duplicate bool
}

type OrderSummary struct {
	ID     string          `json:"id"`
	Status orders.Status   `json:"status"`
	Total  decimal.Decimal `json:"total"`
}

type PaymentEcho struct {
	TransactionID string          `json:"transactionId"`
	Status        Outcome         `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	ReceivedAt    time.Time       `json:"receivedAt"`
}

type Result struct {
	Order     OrderSummary `json:"order"`
	Payment   PaymentEcho  `json:"payment"`
	Duplicate bool         `json:"duplicate"`
}
