package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type cartLine struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	Stock       int
}

// lockCartLines loads the user's cart and row-locks both the lines and their
// products. Products are locked in id order so overlapping carts cannot deadlock.
func lockCartLines(ctx context.Context, tx pgx.Tx, userID string) ([]cartLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT c.id, p.id, p.name, c.quantity, p.price, p.stock
		FROM cart_lines c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY p.id
		FOR UPDATE OF c, p`, userID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Quantity, &l.Price, &l.Stock); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// shortages lists every line that asks for more than its product holds.
func shortages(lines []cartLine) []apperr.Shortage {
	var out []apperr.Shortage
	for _, l := range lines {
		if l.Quantity > l.Stock {
			out = append(out, apperr.Shortage{
				ProductID: l.ProductID, Name: l.ProductName, Required: l.Quantity, Available: l.Stock,
			})
		}
	}
	return out
}

// decrementStock takes qty off the product only if that leaves stock >= 0.
func decrementStock(ctx context.Context, tx pgx.Tx, productID string, qty int) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	return ct.RowsAffected() == 1, nil
}
