package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Product(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `SELECT id, name, price, stock FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product %s not found", productID)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Upsert adds qty to the user's line for productID, creating it if needed.
// Concurrent adds for the same product merge on the unique (user_id, product_id).
func (r *Repo) Upsert(ctx context.Context, userID, productID string, qty int) (string, int, error) {
	var id string
	var total int
	err := r.DB.QueryRow(ctx, `
		INSERT INTO cart_lines(id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING id, quantity`,
		uuid.NewString(), userID, productID, qty,
	).Scan(&id, &total)
	if err != nil {
		return "", 0, fmt.Errorf("upsert cart line: %w", err)
	}
	return id, total, nil
}

// Line returns one of the user's lines; another user's line is NotFound.
func (r *Repo) Line(ctx context.Context, userID, lineID string) (Line, error) {
	var l Line
	err := r.DB.QueryRow(ctx, `
		SELECT c.id, p.id, p.name, p.price, c.quantity, p.stock
		FROM cart_lines c JOIN products p ON p.id = c.product_id
		WHERE c.id = $1 AND c.user_id = $2`, lineID, userID).
		Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Price, &l.Quantity, &l.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, apperr.NotFound("cart item %s not found", lineID)
	}
	if err != nil {
		return Line{}, fmt.Errorf("get cart line: %w", err)
	}
	return l, nil
}

func (r *Repo) SetQuantity(ctx context.Context, userID, lineID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE cart_lines SET quantity = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2`, lineID, userID, qty)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("cart item %s not found", lineID)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, userID, lineID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND user_id = $2`, lineID, userID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("cart item %s not found", lineID)
	}
	return nil
}

func (r *Repo) Clear(ctx context.Context, userID string) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT c.id, p.id, p.name, p.price, c.quantity, p.stock
		FROM cart_lines c JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Price, &l.Quantity, &l.Stock); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
