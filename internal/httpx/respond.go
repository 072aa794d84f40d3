package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code, Details: details})
}

// writeError maps a service error onto its HTTP status. Anything that is not a
// domain error is logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  int
		code    string
		details any
	)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperr.ErrInsufficientStock):
		status, code = http.StatusConflict, "insufficient_stock"
		var ise *apperr.InsufficientStockError
		if errors.As(err, &ise) {
			details = ise.Shortages
		}
	case errors.Is(err, apperr.ErrEmptyCart):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, apperr.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperr.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	default:
		cause := err
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Cause() != nil {
			cause = ae.Cause()
		}
		logx.WithContext(r.Context()).Errorw("request failed",
			logx.Field("method", r.Method),
			logx.Field("path", r.URL.Path),
			logx.Field("error", cause.Error()))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
		return
	}
	respondError(w, status, code, err.Error(), details)
}
