package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// MaxPrice is the first price the NUMERIC(12,2) column cannot hold.
var MaxPrice = decimal.New(1, 10)

type Store interface {
	ListProducts(ctx context.Context, limit, offset int) ([]Product, int, error)
	Product(ctx context.Context, id string) (Product, error)
	ProductBySlug(ctx context.Context, slug string) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, id string, patch ProductPatch) (Product, error)
	DeleteProduct(ctx context.Context, id string) error

	Categories(ctx context.Context) ([]Category, error)
	Category(ctx context.Context, id string) (Category, error)
	CategoryBySlug(ctx context.Context, slug string) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// PriceNotifier is told whenever product rows change so cached cart views
// priced from them are rebuilt.
type PriceNotifier interface {
	CatalogChanged(ctx context.Context) error
}

type Service struct {
	store  Store
	prices PriceNotifier
}

func NewService(store Store, prices PriceNotifier) *Service {
	return &Service{store: store, prices: prices}
}

// ListProducts pages through the catalog. page and limit fall back to 1 and
// DefaultLimit when unset; limit is capped at MaxLimit.
func (s *Service) ListProducts(ctx context.Context, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	list, total, err := s.store.ListProducts(ctx, limit, (page-1)*limit)
	if err != nil {
		return Page{}, apperr.Wrap("list products", err)
	}
	return Page{
		Products:   list,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
		Limit:      limit,
	}, nil
}

func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	p, err := s.store.Product(ctx, id)
	return p, apperr.Wrap("get product", err)
}

func (s *Service) ProductBySlug(ctx context.Context, slug string) (Product, error) {
	p, err := s.store.ProductBySlug(ctx, slug)
	return p, apperr.Wrap("get product", err)
}

// CreateProduct derives the slug from the name when none is given.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Product{}, apperr.Validation("product name is required")
	}
	if err := checkPrice(p.Price); err != nil {
		return Product{}, err
	}
	if p.Stock < 0 {
		return Product{}, apperr.Validation("stock must not be negative")
	}
	slug, err := slugFor(p.Slug, p.Name)
	if err != nil {
		return Product{}, err
	}
	p.Slug = slug
	p.ID = uuid.NewString()

	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, apperr.Wrap("create product", err)
	}
	logx.WithContext(ctx).Infow("product created", logx.Field("product_id", created.ID), logx.Field("slug", created.Slug))
	return created, nil
}

// UpdateProduct applies a partial update. A new name without a new slug
// regenerates the slug.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Product{}, apperr.Validation("product name must not be empty")
		}
		patch.Name = &name
	}
	if patch.Price != nil {
		if err := checkPrice(*patch.Price); err != nil {
			return Product{}, err
		}
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return Product{}, apperr.Validation("stock must not be negative")
	}
	if patch.Slug != nil || patch.Name != nil {
		var given, name string
		if patch.Slug != nil {
			given = *patch.Slug
		}
		if patch.Name != nil {
			name = *patch.Name
		}
		slug, err := slugFor(given, name)
		if err != nil {
			return Product{}, err
		}
		patch.Slug = &slug
	}

	updated, err := s.store.UpdateProduct(ctx, id, patch)
	if err != nil {
		return Product{}, apperr.Wrap("update product", err)
	}
	s.catalogChanged(ctx, id)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return apperr.Wrap("delete product", err)
	}
	s.catalogChanged(ctx, id)
	return nil
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	list, err := s.store.Categories(ctx)
	return list, apperr.Wrap("list categories", err)
}

func (s *Service) Category(ctx context.Context, id string) (Category, error) {
	c, err := s.store.Category(ctx, id)
	return c, apperr.Wrap("get category", err)
}

func (s *Service) CategoryBySlug(ctx context.Context, slug string) (Category, error) {
	c, err := s.store.CategoryBySlug(ctx, slug)
	return c, apperr.Wrap("get category", err)
}

func (s *Service) CreateCategory(ctx context.Context, name, slug string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, apperr.Validation("category name is required")
	}
	slug, err := slugFor(slug, name)
	if err != nil {
		return Category{}, err
	}
	c, err := s.store.CreateCategory(ctx, Category{ID: uuid.NewString(), Name: name, Slug: slug})
	return c, apperr.Wrap("create category", err)
}

func (s *Service) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Category{}, apperr.Validation("category name must not be empty")
		}
		patch.Name = &name
	}
	if patch.Slug != nil || patch.Name != nil {
		var given, name string
		if patch.Slug != nil {
			given = *patch.Slug
		}
		if patch.Name != nil {
			name = *patch.Name
		}
		slug, err := slugFor(given, name)
		if err != nil {
			return Category{}, err
		}
		patch.Slug = &slug
	}
	c, err := s.store.UpdateCategory(ctx, id, patch)
	return c, apperr.Wrap("update category", err)
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return apperr.Wrap("delete category", s.store.DeleteCategory(ctx, id))
}

// catalogChanged never fails the write; a missed bump only delays repricing
// until the cached carts expire.
func (s *Service) catalogChanged(ctx context.Context, productID string) {
	if s.prices == nil {
		return
	}
	if err := s.prices.CatalogChanged(ctx); err != nil {
		logx.WithContext(ctx).Errorw("catalog version bump failed",
			logx.Field("product_id", productID),
			logx.Field("error", err.Error()))
	}
}

func checkPrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if p.GreaterThanOrEqual(MaxPrice) {
		return apperr.Validation("price must be less than %s", MaxPrice.String())
	}
	return nil
}

// slugFor normalizes the given slug, or derives one from name when it is empty.
func slugFor(given, name string) (string, error) {
	src := given
	if strings.TrimSpace(src) == "" {
		src = name
	}
	slug := Slugify(src)
	if slug == "" {
		return "", apperr.Validation("slug must contain letters or digits")
	}
	return slug, nil
}

// Slugify lowercases s and collapses every run of characters outside [a-z0-9]
// into a single dash, trimming dashes at either end.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
