package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-storefront/internal/metrics"
)

func NewRouter(m *metrics.Metrics, timeout time.Duration) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(instrument(m), Identity)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return r
}

// instrument records request count and latency per route pattern.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				pattern = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(pattern, strconv.Itoa(status), float64(time.Since(start).Milliseconds()))
		})
	}
}

// Handlers groups the resource handlers mounted by Mount. Nil handlers are skipped.
type Handlers struct {
	Catalog  *CatalogHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
	Payments *PaymentsHandler
	Queues   *QueuesHandler
}

func Mount(r chi.Router, h Handlers) {
	r.Route("/api", func(r chi.Router) {
		if h.Catalog != nil {
			h.Catalog.Register(r)
		}
		if h.Payments != nil {
			h.Payments.Register(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			if h.Catalog != nil {
				h.Catalog.RegisterAdmin(r)
			}
			if h.Orders != nil {
				h.Orders.RegisterAdmin(r)
			}
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			if h.Cart != nil {
				h.Cart.Register(r)
			}
			if h.Orders != nil {
				h.Orders.Register(r)
			}
		})
	})
	if h.Queues != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			h.Queues.Register(r)
		})
	}
}
