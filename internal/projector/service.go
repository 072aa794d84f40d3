package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/zeromicro/go-zero/core/logx"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

// Service projects order lifecycle events into the order_status cache.
type Service struct {
	Redis redis.Cmdable
	Cache *orders.StatusCache
	Name  string // dedup namespace
}

func New(rdb redis.Cmdable, name string) *Service {
	return &Service{Redis: rdb, Cache: &orders.StatusCache{Redis: rdb}, Name: name}
}

// Handle is installed as the consumer handler for both order topics.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return s.poison(ctx, m, err)
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.Name, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	var snap orders.StatusSnapshot
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return s.poison(ctx, m, err)
		}
		snap = orders.StatusSnapshot{OrderID: p.OrderID, UserID: p.UserID, Status: p.Status, UpdatedAt: env.OccurredAt}
		if snap.Status == "" {
			snap.Status = orders.StatusPending
		}
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return s.poison(ctx, m, err)
		}
		snap = orders.StatusSnapshot{OrderID: p.OrderID, UserID: p.UserID, Status: p.To, UpdatedAt: env.OccurredAt}
	default:
		return nil
	}

	wrote, err := s.Cache.SetIfNewer(ctx, snap)
	if err != nil {
		return err
	}
	// mark only after the write so a failed write is redelivered
	if _, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup); err != nil {
		logx.WithContext(ctx).Errorw("dedup mark failed", logx.Field("event_id", env.EventID), logx.Field("error", err.Error()))
	}
	logx.WithContext(ctx).Infow("order status projected",
		logx.Field("order_id", snap.OrderID),
		logx.Field("status", snap.Status),
		logx.Field("event_type", env.EventType),
		logx.Field("applied", wrote))
	return nil
}

// poison logs an event that can never be decoded and lets it be committed,
// since the consumer retries failed messages indefinitely.
func (s *Service) poison(ctx context.Context, m kafkago.Message, err error) error {
	logx.WithContext(ctx).Errorw("undecodable order event",
		logx.Field("topic", m.Topic),
		logx.Field("partition", m.Partition),
		logx.Field("offset", m.Offset),
		logx.Field("error", err.Error()))
	return nil
}
