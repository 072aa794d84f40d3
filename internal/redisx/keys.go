package redisx

import "time"

const (
	// Cart read cache: cart:{user_id} -> cart view JSON
	KeyCart = "cart:%s"

	// Cart write counter: cart_ver:{user_id}, bumped on every cart mutation
	KeyCartVersion = "cart_ver:%s"

	// Catalog write counter, bumped on every price or product change
	KeyCatalogVersion = "catalog_ver"

	// Order status cache: order_status:{order_id} -> {"order_id","user_id","status","updated_at"}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCart        = 5 * time.Minute
	TTLStatusCache = 30 * time.Minute
	TTLDedup       = 48 * time.Hour
)
