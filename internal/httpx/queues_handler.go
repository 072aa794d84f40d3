package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/invoice"
)

type QueueInspector interface {
	Stats() (invoice.QueueStats, error)
	Dead(limit int) ([]invoice.DeadJob, error)
	Retry(id string) error
}

// QueuesHandler exposes the invoice queue to operators.
type QueuesHandler struct {
	Inspector QueueInspector
}

func (h *QueuesHandler) Register(r chi.Router) {
	r.Get("/queues", h.stats)
	r.Get("/queues/dead", h.dead)
	r.Post("/queues/dead/{id}/retry", h.retry)
}

func (h *QueuesHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Inspector.Stats()
	if err != nil {
		writeError(w, r, apperr.Internal("queue stats", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *QueuesHandler) dead(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := h.Inspector.Dead(limit)
	if err != nil {
		writeError(w, r, apperr.Internal("dead jobs", err))
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *QueuesHandler) retry(w http.ResponseWriter, r *http.Request) {
	if err := h.Inspector.Retry(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, apperr.Wrap("retry job", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "job queued for retry"})
}
