package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `
	p.id, p.name, COALESCE(p.slug, ''), p.description, p.price, p.stock, p.images,
	p.category_id, c.name, c.slug, p.created_at, p.updated_at
	FROM products p LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var catID, name, slug *string
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Stock, &p.Images,
		&catID, &name, &slug, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if catID != nil {
		p.CategoryID = *catID
		p.Category = &CategoryRef{ID: *catID}
		if name != nil {
			p.Category.Name = *name
		}
		if slug != nil {
			p.Category.Slug = *slug
		}
	}
	return p, nil
}

// ListProducts returns one page, newest first, and the total product count.
func (r *Repo) ListProducts(ctx context.Context, limit, offset int) ([]Product, int, error) {
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := r.DB.Query(ctx, `SELECT`+productColumns+`
		ORDER BY p.created_at DESC, p.id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repo) Product(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT`+productColumns+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *Repo) ProductBySlug(ctx context.Context, slug string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT`+productColumns+` WHERE p.slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product with slug %s not found", slug)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product by slug: %w", err)
	}
	return p, nil
}

func (r *Repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if p.Images == nil {
		p.Images = []string{}
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, slug, description, price, stock, images, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
		p.ID, p.Name, p.Slug, p.Description, p.Price, p.Stock, p.Images, p.CategoryID)
	if err != nil {
		return Product{}, productWriteError("create product", p.Slug, p.CategoryID, err)
	}
	return r.Product(ctx, p.ID)
}

func (r *Repo) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	var slug, catID string
	if patch.Slug != nil {
		slug = *patch.Slug
	}
	if patch.CategoryID != nil {
		catID = *patch.CategoryID
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET
			name        = COALESCE($2, name),
			slug        = COALESCE($3, slug),
			description = COALESCE($4, description),
			price       = COALESCE($5::numeric, price),
			stock       = COALESCE($6, stock),
			images      = COALESCE($7::text[], images),
			category_id = COALESCE($8, category_id),
			updated_at  = now()
		WHERE id = $1`,
		id, patch.Name, patch.Slug, patch.Description, patch.Price, patch.Stock, patch.Images, patch.CategoryID)
	if err != nil {
		return Product{}, productWriteError("update product", slug, catID, err)
	}
	if ct.RowsAffected() == 0 {
		return Product{}, apperr.NotFound("product %s not found", id)
	}
	return r.Product(ctx, id)
}

func (r *Repo) DeleteProduct(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if pgCode(err) == codeForeignKeyViolation {
		return apperr.Validation("product %s is referenced by carts or orders", id)
	}
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("product %s not found", id)
	}
	return nil
}

func productWriteError(op, slug, categoryID string, err error) error {
	switch pgCode(err) {
	case codeUniqueViolation:
		return apperr.Validation("product with slug '%s' already exists", slug)
	case codeForeignKeyViolation:
		return apperr.NotFound("category %s not found", categoryID)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Repo) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, slug, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) category(ctx context.Context, where, arg string) (Category, error) {
	var c Category
	err := r.DB.QueryRow(ctx, `SELECT id, name, slug, created_at, updated_at FROM categories WHERE `+where+` = $1`, arg).
		Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repo) Category(ctx context.Context, id string) (Category, error) {
	c, err := r.category(ctx, "id", id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, apperr.NotFound("category %s not found", id)
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *Repo) CategoryBySlug(ctx context.Context, slug string) (Category, error) {
	c, err := r.category(ctx, "slug", slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, apperr.NotFound("category with slug %s not found", slug)
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category by slug: %w", err)
	}
	return c, nil
}

func (r *Repo) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO categories(id, name, slug) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`, c.ID, c.Name, c.Slug).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return Category{}, apperr.Validation("category with name '%s' or slug '%s' already exists", c.Name, c.Slug)
	}
	if err != nil {
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repo) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error) {
	var c Category
	err := r.DB.QueryRow(ctx, `
		UPDATE categories SET
			name       = COALESCE($2, name),
			slug       = COALESCE($3, slug),
			updated_at = now()
		WHERE id = $1
		RETURNING id, name, slug, created_at, updated_at`, id, patch.Name, patch.Slug).
		Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, apperr.NotFound("category %s not found", id)
	}
	if pgCode(err) == codeUniqueViolation {
		return Category{}, apperr.Validation("category name or slug already exists")
	}
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// DeleteCategory refuses to remove a category that still has products.
func (r *Repo) DeleteCategory(ctx context.Context, id string) error {
	var used int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE category_id = $1`, id).Scan(&used); err != nil {
		return fmt.Errorf("count category products: %w", err)
	}
	if used > 0 {
		return apperr.Validation("cannot delete category that is being used by %d products", used)
	}

	ct, err := r.DB.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if pgCode(err) == codeForeignKeyViolation {
		return apperr.Validation("category %s is still in use", id)
	}
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("category %s not found", id)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
