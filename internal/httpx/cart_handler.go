package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/cart"
)

type CartService interface {
	Get(ctx context.Context, userID string) (cart.View, error)
	Add(ctx context.Context, userID, productID string, qty int) (cart.Line, error)
	Update(ctx context.Context, userID, lineID string, qty int) (cart.Line, error)
	Remove(ctx context.Context, userID, lineID string) error
	Clear(ctx context.Context, userID string) error
}

type CartHandler struct {
	Service CartService
}

type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"omitempty,min=1"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.get)
	r.Post("/cart", h.add)
	r.Delete("/cart", h.clear)
	r.Put("/cart/{id}", h.update)
	r.Delete("/cart/{id}", h.remove)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.Get(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !bind(w, r, &req) {
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	line, err := h.Service.Add(r.Context(), UserID(r.Context()), req.ProductID, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !bind(w, r, &req) {
		return
	}
	line, err := h.Service.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Remove(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Clear(r.Context(), UserID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}
