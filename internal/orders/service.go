package orders

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/metrics"
)

type Store interface {
	Checkout(ctx context.Context, userID string) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (StatusSnapshot, error)
	Transition(ctx context.Context, orderID string, decide func(Status) (Status, error)) (StatusChange, error)
}

type Cache interface {
	Get(ctx context.Context, orderID string) (StatusSnapshot, bool, error)
	Set(ctx context.Context, s StatusSnapshot) error
}

// CartInvalidator drops a user's cached cart after checkout.
type CartInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type Service struct {
	Store   Store
	Cache   Cache
	Carts   CartInvalidator
	Events  *Events
	Metrics *metrics.Metrics
}

func (s *Service) Checkout(ctx context.Context, userID string) (Order, error) {
	log := logx.WithContext(ctx)

	o, err := s.Store.Checkout(ctx, userID)
	if err != nil {
		s.Metrics.Checkout(checkoutResult(err))
		if !apperr.IsDomain(err) {
			log.Errorw("checkout failed", logx.Field("user_id", userID), logx.Field("error", err.Error()))
		}
		return Order{}, apperr.Wrap("checkout", err)
	}
	s.Metrics.Checkout("success")
	log.Infow("order created",
		logx.Field("order_id", o.ID),
		logx.Field("user_id", userID),
		logx.Field("items", len(o.Items)),
		logx.Field("total", o.Total.String()))

	s.Events.OrderCreated(ctx, o)
	s.cacheStatus(ctx, StatusSnapshot{OrderID: o.ID, UserID: o.UserID, Status: o.Status, UpdatedAt: o.UpdatedAt})
	if s.Carts != nil {
		if err := s.Carts.Invalidate(ctx, userID); err != nil {
			log.Errorw("cart cache invalidate failed", logx.Field("user_id", userID), logx.Field("error", err.Error()))
		}
	}
	return o, nil
}

func checkoutResult(err error) string {
	switch {
	case errors.Is(err, apperr.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "error"
	}
}

// Get returns the order if userID owns it.
func (s *Service) Get(ctx context.Context, userID, orderID string) (Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, apperr.Wrap("get order", err)
	}
	if o.UserID != userID {
		return Order{}, apperr.Forbidden("order %s belongs to another user", orderID)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	list, err := s.Store.ListByUser(ctx, userID)
	return list, apperr.Wrap("list orders", err)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	list, err := s.Store.ListAll(ctx)
	return list, apperr.Wrap("list all orders", err)
}

// Status serves the cached status snapshot, falling back to the database.
func (s *Service) Status(ctx context.Context, userID, orderID string) (StatusSnapshot, error) {
	if s.Cache != nil {
		snap, ok, err := s.Cache.Get(ctx, orderID)
		if err != nil {
			logx.WithContext(ctx).Errorw("status cache read failed", logx.Field("order_id", orderID), logx.Field("error", err.Error()))
		}
		if ok {
			if snap.UserID != userID {
				return StatusSnapshot{}, apperr.Forbidden("order %s belongs to another user", orderID)
			}
			return snap, nil
		}
	}

	snap, err := s.Store.GetOrderStatus(ctx, orderID)
	if err != nil {
		return StatusSnapshot{}, apperr.Wrap("get order status", err)
	}
	if snap.UserID != userID {
		return StatusSnapshot{}, apperr.Forbidden("order %s belongs to another user", orderID)
	}
	s.cacheStatus(ctx, snap)
	return snap, nil
}

// UpdateStatus is the admin override. It is still bound by the transition table.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target Status) (StatusChange, error) {
	return s.transition(ctx, orderID, "admin", func(cur Status) (Status, error) {
		return Override(cur, target)
	})
}

// Apply moves the order according to ev.
func (s *Service) Apply(ctx context.Context, orderID string, ev Event, reason string) (StatusChange, error) {
	return s.transition(ctx, orderID, reason, func(cur Status) (Status, error) {
		return Next(cur, ev)
	})
}

func (s *Service) transition(ctx context.Context, orderID, reason string, decide func(Status) (Status, error)) (StatusChange, error) {
	ch, err := s.Store.Transition(ctx, orderID, decide)
	if err != nil {
		return ch, apperr.Wrap("transition order", err)
	}
	if ch.Changed() {
		logx.WithContext(ctx).Infow("order status changed",
			logx.Field("order_id", orderID),
			logx.Field("from", ch.From),
			logx.Field("to", ch.To),
			logx.Field("reason", reason))
		s.Events.OrderStatusChanged(ctx, ch, reason)
		s.cacheStatus(ctx, StatusSnapshot{OrderID: orderID, UserID: ch.UserID, Status: ch.To, UpdatedAt: ch.At})
	}
	return ch, nil
}

// PublishChange announces and caches a change committed outside Transition.
func (s *Service) PublishChange(ctx context.Context, ch StatusChange, reason string) {
	if !ch.Changed() {
		return
	}
	s.Events.OrderStatusChanged(ctx, ch, reason)
	s.cacheStatus(ctx, StatusSnapshot{OrderID: ch.OrderID, UserID: ch.UserID, Status: ch.To, UpdatedAt: ch.At})
}

func (s *Service) cacheStatus(ctx context.Context, snap StatusSnapshot) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, snap); err != nil {
		logx.WithContext(ctx).Errorw("status cache write failed", logx.Field("order_id", snap.OrderID), logx.Field("error", err.Error()))
	}
}
