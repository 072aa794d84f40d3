package projector

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

type capture struct{ msgs []kafkago.Message }

func (c *capture) Publish(key, value []byte, headers ...kafkago.Header) {
	c.msgs = append(c.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func newTestProjector(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "projector"), mr
}

func TestHandle_ProjectsLifecycle(t *testing.T) {
	p, _ := newTestProjector(t)
	ctx := context.Background()
	pub := &capture{}
	ev := &orders.Events{Created: pub, StatusChanged: pub, Producer: "test"}

	created := time.Now().UTC().Add(-time.Minute)
	ev.OrderCreated(ctx, orders.Order{ID: "o-1", UserID: "u-1", Status: orders.StatusPending, Total: decimal.NewFromInt(25), CreatedAt: created})
	ev.OrderStatusChanged(ctx, orders.StatusChange{OrderID: "o-1", UserID: "u-1", From: orders.StatusPending, To: orders.StatusProcessing, At: created.Add(time.Second)}, "payment")
	require.Len(t, pub.msgs, 2)

	// status change arrives first, creation second
	require.NoError(t, p.Handle(ctx, pub.msgs[1]))
	require.NoError(t, p.Handle(ctx, pub.msgs[0]))

	snap, ok, err := p.Cache.Get(ctx, "o-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orders.StatusProcessing, snap.Status)
	assert.Equal(t, "u-1", snap.UserID)
}

func TestHandle_DedupsByEventID(t *testing.T) {
	p, mr := newTestProjector(t)
	ctx := context.Background()
	pub := &capture{}
	ev := &orders.Events{StatusChanged: pub}

	ev.OrderStatusChanged(ctx, orders.StatusChange{OrderID: "o-1", UserID: "u-1", From: orders.StatusPending, To: orders.StatusCancelled, At: time.Now()}, "payment")
	require.NoError(t, p.Handle(ctx, pub.msgs[0]))

	// overwrite the projection, then redeliver the same event
	require.NoError(t, p.Cache.Set(ctx, orders.StatusSnapshot{OrderID: "o-1", UserID: "u-1", Status: orders.StatusPending, UpdatedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, p.Handle(ctx, pub.msgs[0]))

	snap, _, _ := p.Cache.Get(ctx, "o-1")
	assert.Equal(t, orders.StatusPending, snap.Status)
	assert.Len(t, mr.Keys(), 2)
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "dedup:projector:") {
			assert.Equal(t, redisx.TTLDedup, mr.TTL(k))
		}
	}
}

func TestHandle_PoisonMessageIsSkipped(t *testing.T) {
	p, _ := newTestProjector(t)
	assert.NoError(t, p.Handle(context.Background(), kafkago.Message{Value: []byte("not json")}))
}

func TestHandle_UndecodablePayloadIsSkipped(t *testing.T) {
	p, mr := newTestProjector(t)
	value := []byte(`{"event_id":"e-1","event_type":"` + orders.EventOrderStatusChanged + `","payload":"oops"}`)
	assert.NoError(t, p.Handle(context.Background(), kafkago.Message{Value: value}))
	assert.Empty(t, mr.Keys())
}
