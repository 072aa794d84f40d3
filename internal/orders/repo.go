package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

// maxTransitionAttempts bounds the compare-and-set loop in Transition.
const maxTransitionAttempts = 3

type Repo struct{ DB *pgxpool.Pool }

// Checkout turns the user's cart into a PENDING order in one transaction:
// lock lines and products, validate stock, insert order and items, decrement
// stock, clear the cart. Any failure rolls everything back.
func (r *Repo) Checkout(ctx context.Context, userID string) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, fmt.Errorf("begin checkout: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines, err := lockCartLines(ctx, tx, userID)
	if err != nil {
		return Order{}, err
	}
	order, err := placeOrder(ctx, tx, userID, lines)
	if err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit checkout: %w", err)
	}
	return order, nil
}

// placeOrder writes the order for the locked lines and removes exactly those
// lines from the cart. Lines added after the lock stay in the cart.
func placeOrder(ctx context.Context, tx pgx.Tx, userID string, lines []cartLine) (Order, error) {
	if len(lines) == 0 {
		return Order{}, apperr.EmptyCart()
	}
	if short := shortages(lines); len(short) > 0 {
		return Order{}, apperr.InsufficientStock(short...)
	}

	order := Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: StatusPending,
		Total:  decimal.Zero,
		Items:  make([]OrderItem, 0, len(lines)),
	}
	lineIDs := make([]string, 0, len(lines))
	for _, l := range lines {
		order.Total = order.Total.Add(lineTotal(l.Price, l.Quantity))
		lineIDs = append(lineIDs, l.ID)
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, total, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		order.ID, userID, order.Total, string(order.Status),
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, l := range lines {
		ok, err := decrementStock(ctx, tx, l.ProductID, l.Quantity)
		if err != nil {
			return Order{}, err
		}
		if !ok {
			return Order{}, apperr.InsufficientStock(apperr.Shortage{
				ProductID: l.ProductID, Name: l.ProductName, Required: l.Quantity, Available: l.Stock,
			})
		}

		item := newItem(order.ID, l, uuid.NewString())
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price,
		); err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE id = ANY($1)`, lineIDs); err != nil {
		return Order{}, fmt.Errorf("clear cart: %w", err)
	}
	return order, nil
}

const orderColumns = `o.id, o.user_id, COALESCE(u.email, ''), o.total, o.status, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.Total, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

// GetOrder loads an order with its items and owner email.
func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE o.id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	list := []Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return Order{}, err
	}
	return list[0], nil
}

// ListByUser returns the user's orders, newest first.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC`, userID)
}

// ListAll is the admin listing across every user.
func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC`)
}

func (r *Repo) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) attachItems(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, 0, len(list))
	byID := make(map[string]int, len(list))
	for i := range list {
		ids = append(ids, list[i].ID)
		byID[list[i].ID] = i
		list[i].Items = []OrderItem{}
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, p.id`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		it.Subtotal = lineTotal(it.Price, it.Quantity)
		i := byID[it.OrderID]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (StatusSnapshot, error) {
	snap := StatusSnapshot{OrderID: orderID}
	var s string
	err := r.DB.QueryRow(ctx, `SELECT user_id, status, updated_at FROM orders WHERE id=$1`, orderID).
		Scan(&snap.UserID, &s, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatusSnapshot{}, apperr.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("get order status: %w", err)
	}
	snap.Status = Status(s)
	return snap, nil
}

// Transition reads the current status, asks decide for the target and writes
// it only if the status is still the one that was read. A lost race re-reads
// and decides again.
func (r *Repo) Transition(ctx context.Context, orderID string, decide func(Status) (Status, error)) (StatusChange, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		snap, err := r.GetOrderStatus(ctx, orderID)
		if err != nil {
			return StatusChange{}, err
		}
		ch := StatusChange{OrderID: orderID, UserID: snap.UserID, From: snap.Status, To: snap.Status, At: snap.UpdatedAt}
		to, err := decide(snap.Status)
		if err != nil {
			return ch, err
		}
		if to == snap.Status {
			return ch, nil
		}

		var at time.Time
		err = r.DB.QueryRow(ctx, `
			UPDATE orders SET status = $3, updated_at = now()
			WHERE id = $1 AND status = $2
			RETURNING updated_at`, orderID, string(snap.Status), string(to)).Scan(&at)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return ch, fmt.Errorf("update order status: %w", err)
		}
		ch.To, ch.At = to, at
		return ch, nil
	}
	return StatusChange{}, fmt.Errorf("order %s: status kept changing after %d attempts", orderID, maxTransitionAttempts)
}
