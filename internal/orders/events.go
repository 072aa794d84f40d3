package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	Price     string `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Status  Status      `json:"status"`
	Items   []ItemPrice `json:"items"`
	Total   string      `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Reason  string `json:"reason,omitempty"` // payment, invoice, admin
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Events publishes order lifecycle envelopes. A nil *Events publishes nothing.
type Events struct {
	Created       Publisher
	StatusChanged Publisher
	Producer      string
}

func (e *Events) OrderCreated(ctx context.Context, o Order) {
	if e == nil || e.Created == nil {
		return
	}
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, Price: it.Price.String()})
	}
	e.publish(ctx, e.Created, EventOrderCreated, o.ID, o.CreatedAt, OrderCreatedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  o.Status,
		Items:   items,
		Total:   o.Total.String(),
	})
}

func (e *Events) OrderStatusChanged(ctx context.Context, ch StatusChange, reason string) {
	if e == nil || e.StatusChanged == nil || !ch.Changed() {
		return
	}
	e.publish(ctx, e.StatusChanged, EventOrderStatusChanged, ch.OrderID, ch.At, OrderStatusChangedPayload{
		OrderID: ch.OrderID,
		UserID:  ch.UserID,
		From:    ch.From,
		To:      ch.To,
		Reason:  reason,
	})
}

func (e *Events) publish(ctx context.Context, p Publisher, eventType, orderID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now()
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      e.Producer,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
