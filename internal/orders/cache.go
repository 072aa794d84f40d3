package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront/internal/redisx"
)

// StatusCache keeps order_status:{id} snapshots in redis.
type StatusCache struct {
	Redis redis.Cmdable
}

func statusKey(orderID string) string { return fmt.Sprintf(redisx.KeyOrderStatus, orderID) }

func (c *StatusCache) Get(ctx context.Context, orderID string) (StatusSnapshot, bool, error) {
	b, err := c.Redis.Get(ctx, statusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return StatusSnapshot{}, false, nil
	}
	if err != nil {
		return StatusSnapshot{}, false, err
	}
	var s StatusSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		// unreadable entries are treated as a miss and overwritten later
		return StatusSnapshot{}, false, nil
	}
	return s, true, nil
}

func (c *StatusCache) Set(ctx context.Context, s StatusSnapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, statusKey(s.OrderID), b, redisx.TTLStatusCache).Err()
}

// SetIfNewer writes s unless the cache already holds a later snapshot. Events
// for one order arrive on two topics, so an older one may land last.
func (c *StatusCache) SetIfNewer(ctx context.Context, s StatusSnapshot) (bool, error) {
	cur, ok, err := c.Get(ctx, s.OrderID)
	if err != nil {
		return false, err
	}
	if ok && cur.UpdatedAt.After(s.UpdatedAt) {
		return false, nil
	}
	return true, c.Set(ctx, s)
}
