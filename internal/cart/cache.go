package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront/internal/redisx"
)

var ErrCacheMiss = errors.New("cache miss")

// Stamp identifies the cart and catalog writes a view was built from.
type Stamp struct {
	Cart    int64 `json:"cart"`
	Catalog int64 `json:"catalog"`
}

type entry struct {
	View  View  `json:"view"`
	Stamp Stamp `json:"stamp"`
}

// Cache keeps cart views in redis under cart:{user_id}. A view is only
// served while neither the user's cart nor the catalog changed since it was
// built.
type Cache struct {
	Redis   redis.Cmdable
	BaseTTL time.Duration
}

func NewCache(rdb redis.Cmdable) *Cache {
	return &Cache{Redis: rdb, BaseTTL: redisx.TTLCart}
}

func cacheKey(userID string) string   { return fmt.Sprintf(redisx.KeyCart, userID) }
func versionKey(userID string) string { return fmt.Sprintf(redisx.KeyCartVersion, userID) }

// setIfCurrent writes the view only when both counters still match its stamp.
var setIfCurrent = redis.NewScript(`
local cart = redis.call('GET', KEYS[2]) or '0'
local catalog = redis.call('GET', KEYS[3]) or '0'
if cart ~= ARGV[2] or catalog ~= ARGV[3] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[4])
return 1
`)

// Get returns the cached view and the current stamp. On ErrCacheMiss the
// stamp is still valid and must be passed to Set with the freshly built view.
func (c *Cache) Get(ctx context.Context, userID string) (View, Stamp, error) {
	vals, err := c.Redis.MGet(ctx, versionKey(userID), redisx.KeyCatalogVersion, cacheKey(userID)).Result()
	if err != nil {
		return View{}, Stamp{}, fmt.Errorf("redis mget failed: %w", err)
	}
	st := Stamp{Cart: counter(vals[0]), Catalog: counter(vals[1])}

	raw, ok := vals[2].(string)
	if !ok {
		return View{}, st, ErrCacheMiss
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return View{}, st, ErrCacheMiss
	}
	if e.Stamp != st {
		return View{}, st, ErrCacheMiss
	}
	return e.View, st, nil
}

func counter(v any) int64 {
	s, _ := v.(string)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// Set stores v unless the cart or catalog moved past st in the meantime.
// It reports whether the view was written.
func (c *Cache) Set(ctx context.Context, v View, st Stamp) (bool, error) {
	b, err := json.Marshal(entry{View: v, Stamp: st})
	if err != nil {
		return false, fmt.Errorf("marshal cart failed: %w", err)
	}
	// up to a minute of jitter on top of the base ttl
	ttl := c.BaseTTL + time.Duration(rand.IntN(60))*time.Second
	n, err := setIfCurrent.Run(ctx, c.Redis,
		[]string{cacheKey(v.UserID), versionKey(v.UserID), redisx.KeyCatalogVersion},
		b, strconv.FormatInt(st.Cart, 10), strconv.FormatInt(st.Catalog, 10), int(ttl.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set failed: %w", err)
	}
	return n == 1, nil
}

// Invalidate drops the view and bumps the cart counter so an in-flight
// rebuild cannot store what it read before this write.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, cacheKey(userID))
		p.Incr(ctx, versionKey(userID))
		p.Expire(ctx, versionKey(userID), c.BaseTTL+2*time.Minute)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

// CatalogChanged bumps the catalog counter, retiring every cached cart view
// priced before the change.
func (c *Cache) CatalogChanged(ctx context.Context) error {
	if err := c.Redis.Incr(ctx, redisx.KeyCatalogVersion).Err(); err != nil {
		return fmt.Errorf("redis incr failed: %w", err)
	}
	return nil
}
