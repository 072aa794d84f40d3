package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/payment"
)

type PaymentService interface {
	Process(ctx context.Context, n payment.Notification) (payment.Result, error)
}

type PaymentsHandler struct {
	Service PaymentService
}

// PaymentNotificationRequest is the simulated gateway callback. Amount is
// checked for positivity by the service.
type PaymentNotificationRequest struct {
	OrderID       string          `json:"orderId" validate:"required"`
	Status        string          `json:"status" validate:"omitempty,oneof=success failed pending"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transactionId" validate:"omitempty,max=128"`
	PaymentMethod string          `json:"paymentMethod" validate:"omitempty,max=64"`
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/payments/simulate-payment", h.simulate)
}

func (h *PaymentsHandler) simulate(w http.ResponseWriter, r *http.Request) {
	var req PaymentNotificationRequest
	if !bind(w, r, &req) {
		return
	}
	res, err := h.Service.Process(r.Context(), payment.Notification{
		OrderID:       req.OrderID,
		Outcome:       payment.Outcome(req.Status),
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
