package cart

import "github.com/shopspring/decimal"

type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Line is a cart line priced at the current catalog price.
type Line struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Stock       int             `json:"stock"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type View struct {
	UserID    string          `json:"userId"`
	Items     []Line          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func newView(userID string, lines []Line) View {
	v := View{UserID: userID, Items: make([]Line, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		l = l.priced()
		v.Total = v.Total.Add(l.Subtotal)
		v.ItemCount += l.Quantity
		v.Items = append(v.Items, l)
	}
	return v
}

func (l Line) priced() Line {
	l.Subtotal = l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
	return l
}
