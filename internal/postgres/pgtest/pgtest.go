// Package pgtest starts a throwaway postgres for repository tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ariefcatur/go-storefront/internal/postgres"
)

// Start runs postgres in a container, applies the migrations and returns a
// pool. Skipped under -short.
func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(dsn))

	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// SeedUser inserts a user row.
func SeedUser(t *testing.T, pool *pgxpool.Pool, id, email string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `INSERT INTO users(id, email) VALUES ($1, $2)`, id, email)
	require.NoError(t, err)
}

// SeedProduct inserts a product; price is a decimal string such as "10.00".
func SeedProduct(t *testing.T, pool *pgxpool.Pool, id, name, price string, stock int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products(id, name, price, stock) VALUES ($1, $2, $3::numeric, $4)`, id, name, price, stock)
	require.NoError(t, err)
}

// SeedCartLine inserts a cart line directly, bypassing the cart service.
func SeedCartLine(t *testing.T, pool *pgxpool.Pool, id, userID, productID string, qty int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO cart_lines(id, user_id, product_id, quantity) VALUES ($1, $2, $3, $4)`, id, userID, productID, qty)
	require.NoError(t, err)
}

// Stock reads a product's stock.
func Stock(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, productID).Scan(&n))
	return n
}

// Count runs a SELECT COUNT(*) query.
func Count(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}
