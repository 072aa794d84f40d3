package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

// Steps are the caller's hooks into Apply's transaction.
type Steps struct {
	// Decide picks the target status for the locked order.
	Decide func(ctx context.Context, st OrderState) (orders.Status, error)
	// BeforeCommit runs after the status write; an error rolls back.
	BeforeCommit func(ctx context.Context, a Applied) error
}

type Repo struct{ DB *pgxpool.Pool }

// Apply records n against its order and writes the decided status in one
// transaction. The order row stays locked throughout, so notifications for the
// same order serialize. A (order, transaction) pair seen before is reported as
// Duplicate without any write.
func (r *Repo) Apply(ctx context.Context, n Notification, steps Steps) (Applied, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Applied{}, fmt.Errorf("begin payment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var st OrderState
	var status string
	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT o.id, o.user_id, COALESCE(u.email, ''), o.total, o.status, o.updated_at
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
		FOR UPDATE OF o`, n.OrderID).
		Scan(&st.OrderID, &st.UserID, &st.Email, &st.Total, &status, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Applied{}, apperr.NotFound("order %s not found", n.OrderID)
	}
	if err != nil {
		return Applied{}, fmt.Errorf("lock order: %w", err)
	}
	st.Status = orders.Status(status)

	a := Applied{
		State:  st,
		Change: orders.StatusChange{OrderID: st.OrderID, UserID: st.UserID, From: st.Status, To: st.Status, At: updatedAt},
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO payment_notifications(order_id, transaction_id, outcome, amount, payment_method)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, transaction_id) DO NOTHING`,
		n.OrderID, n.TransactionID, string(n.Outcome), n.Amount, n.PaymentMethod)
	if err != nil {
		return Applied{}, fmt.Errorf("record notification: %w", err)
	}
	if ct.RowsAffected() == 0 {
		a.Duplicate = true
		return a, nil
	}

	to, err := steps.Decide(ctx, st)
	if err != nil {
		return a, err
	}
	if to != st.Status {
		err = tx.QueryRow(ctx, `
			UPDATE orders SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING updated_at`, st.OrderID, string(to)).Scan(&a.Change.At)
		if err != nil {
			return Applied{}, fmt.Errorf("update order status: %w", err)
		}
		a.Change.To = to
	}

	if steps.BeforeCommit != nil {
		if err := steps.BeforeCommit(ctx, a); err != nil {
			return Applied{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Applied{}, fmt.Errorf("commit payment: %w", err)
	}
	return a, nil
}
