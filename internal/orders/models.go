package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	UserEmail string          `json:"userEmail,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Items     []OrderItem     `json:"items"`
}

// OrderItem freezes the unit price at checkout time.
type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"orderId"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func newItem(orderID string, l cartLine, id string) OrderItem {
	return OrderItem{
		ID:          id,
		OrderID:     orderID,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		Quantity:    l.Quantity,
		Price:       l.Price,
		Subtotal:    lineTotal(l.Price, l.Quantity),
	}
}

func lineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

// StatusChange is the outcome of one compare-and-set status write.
type StatusChange struct {
	OrderID string    `json:"orderId"`
	UserID  string    `json:"-"`
	From    Status    `json:"from"`
	To      Status    `json:"status"`
	At      time.Time `json:"updatedAt"`
}

func (c StatusChange) Changed() bool { return c.From != c.To }

// StatusSnapshot is the cached read model for GET /orders/{id}/status.
type StatusSnapshot struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
