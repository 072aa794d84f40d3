package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

type OrderService interface {
	Checkout(ctx context.Context, userID string) (orders.Order, error)
	Get(ctx context.Context, userID, orderID string) (orders.Order, error)
	List(ctx context.Context, userID string) ([]orders.Order, error)
	ListAll(ctx context.Context) ([]orders.Order, error)
	Status(ctx context.Context, userID, orderID string) (orders.StatusSnapshot, error)
	UpdateStatus(ctx context.Context, orderID string, target orders.Status) (orders.StatusChange, error)
}

type OrdersHandler struct {
	Service OrderService
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PROCESSING COMPLETED CANCELLED"`
}

type StatusResponse struct {
	OrderID   string        `json:"orderId"`
	Status    orders.Status `json:"status"`
	UpdatedAt string        `json:"updatedAt"`
}

// Register mounts the caller-scoped routes.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders/checkout", h.checkout)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Get("/orders/{id}/status", h.status)
}

// RegisterAdmin mounts the admin routes; the caller must already be checked.
func (h *OrdersHandler) RegisterAdmin(r chi.Router) {
	r.Get("/orders/admin/all", h.listAll)
	r.Put("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.Checkout(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Status(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		OrderID:   snap.OrderID,
		Status:    snap.Status,
		UpdatedAt: snap.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !bind(w, r, &req) {
		return
	}
	target, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ch, err := h.Service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}
