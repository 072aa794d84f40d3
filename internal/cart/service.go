package cart

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type Store interface {
	Product(ctx context.Context, productID string) (Product, error)
	Upsert(ctx context.Context, userID, productID string, qty int) (lineID string, quantity int, err error)
	Line(ctx context.Context, userID, lineID string) (Line, error)
	SetQuantity(ctx context.Context, userID, lineID string, qty int) error
	Delete(ctx context.Context, userID, lineID string) error
	Clear(ctx context.Context, userID string) error
	List(ctx context.Context, userID string) ([]Line, error)
}

type ViewCache interface {
	Get(ctx context.Context, userID string) (View, Stamp, error)
	Set(ctx context.Context, v View, st Stamp) (bool, error)
	Invalidate(ctx context.Context, userID string) error
}

// loadTimeout bounds a shared cart load, which no longer follows any single
// caller's context.
const loadTimeout = 5 * time.Second

type Service struct {
	store Store
	cache ViewCache
	sfg   singleflight.Group
}

func NewService(store Store, cache ViewCache) *Service {
	return &Service{store: store, cache: cache}
}

// Get returns the cart priced at current catalog prices.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	ch := s.sfg.DoChan(userID, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.load(lctx, userID)
	})
	select {
	case <-ctx.Done():
		return View{}, apperr.Internal("get cart", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return View{}, apperr.Wrap("get cart", res.Err)
		}
		return res.Val.(View), nil
	}
}

func (s *Service) load(ctx context.Context, userID string) (View, error) {
	log := logx.WithContext(ctx)
	cached, st, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cached, nil
	}
	cacheable := errors.Is(err, ErrCacheMiss)
	if !cacheable {
		log.Errorw("cart cache get failed", logx.Field("user_id", userID), logx.Field("error", err.Error()))
	}

	lines, err := s.store.List(ctx, userID)
	if err != nil {
		return View{}, err
	}
	view := newView(userID, lines)
	if cacheable {
		if _, err := s.cache.Set(ctx, view, st); err != nil {
			log.Errorw("cart cache set failed", logx.Field("user_id", userID), logx.Field("error", err.Error()))
		}
	}
	return view, nil
}

// Add merges qty into the user's line for productID. Stock is only a soft
// check here; checkout enforces it.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (Line, error) {
	if qty < 1 {
		return Line{}, apperr.Validation("quantity must be at least 1")
	}
	p, err := s.store.Product(ctx, productID)
	if err != nil {
		return Line{}, apperr.Wrap("add to cart", err)
	}
	if qty > p.Stock {
		return Line{}, apperr.InsufficientStock(apperr.Shortage{
			ProductID: p.ID, Name: p.Name, Required: qty, Available: p.Stock,
		})
	}

	id, total, err := s.store.Upsert(ctx, userID, productID, qty)
	if err != nil {
		return Line{}, apperr.Wrap("add to cart", err)
	}
	s.invalidate(ctx, userID)
	return Line{ID: id, ProductID: p.ID, ProductName: p.Name, Price: p.Price, Quantity: total, Stock: p.Stock}.priced(), nil
}

// Update sets a line's quantity. Zero or less removes the line.
func (s *Service) Update(ctx context.Context, userID, lineID string, qty int) (Line, error) {
	if qty <= 0 {
		return Line{}, s.Remove(ctx, userID, lineID)
	}
	l, err := s.store.Line(ctx, userID, lineID)
	if err != nil {
		return Line{}, apperr.Wrap("update cart", err)
	}
	if qty > l.Stock {
		return Line{}, apperr.InsufficientStock(apperr.Shortage{
			ProductID: l.ProductID, Name: l.ProductName, Required: qty, Available: l.Stock,
		})
	}
	if err := s.store.SetQuantity(ctx, userID, lineID, qty); err != nil {
		return Line{}, apperr.Wrap("update cart", err)
	}
	s.invalidate(ctx, userID)
	l.Quantity = qty
	return l.priced(), nil
}

func (s *Service) Remove(ctx context.Context, userID, lineID string) error {
	if err := s.store.Delete(ctx, userID, lineID); err != nil {
		return apperr.Wrap("remove cart item", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return apperr.Wrap("clear cart", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logx.WithContext(ctx).Errorw("cart cache invalidate failed", logx.Field("user_id", userID), logx.Field("error", err.Error()))
	}
}
