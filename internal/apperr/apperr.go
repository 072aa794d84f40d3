// Package apperr holds the error taxonomy shared by the cart, order and payment
// services. Domain errors carry a kind that callers match with errors.Is;
// everything else is wrapped as a dependency failure with a generic message.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDependency        = errors.New("dependency failure")
)

var domainKinds = []error{
	ErrNotFound,
	ErrValidation,
	ErrInsufficientStock,
	ErrEmptyCart,
	ErrForbidden,
	ErrInvalidTransition,
}

type Error struct {
	kind  error
	msg   string
	cause error
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Kind returns the sentinel this error matches.
func (e *Error) Kind() error { return e.kind }

// Cause is the underlying failure of an internal error, nil for domain errors.
func (e *Error) Cause() error { return e.cause }

func newf(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error   { return newf(ErrNotFound, format, args...) }
func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }
func Forbidden(format string, args ...any) error  { return newf(ErrForbidden, format, args...) }
func EmptyCart() error                            { return newf(ErrEmptyCart, "cart is empty") }

func InvalidTransition(from, to string) error {
	return newf(ErrInvalidTransition, "cannot move order from %s to %s", from, to)
}

// Internal hides err behind a generic dependency failure. The cause stays in
// the unwrap chain so it can be logged.
func Internal(op string, err error) error {
	return &Error{kind: ErrDependency, msg: "internal error", cause: fmt.Errorf("%s: %w", op, err)}
}

// IsDomain reports whether err is one of the caller-facing kinds.
func IsDomain(err error) bool {
	for _, k := range domainKinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Wrap passes domain errors through untouched and turns anything else into an
// internal error.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) || errors.Is(err, ErrDependency) {
		return err
	}
	return Internal(op, err)
}

// Shortage describes one cart line that cannot be served.
type Shortage struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	if len(e.Shortages) == 1 {
		s := e.Shortages[0]
		name := s.Name
		if name == "" {
			name = s.ProductID
		}
		return fmt.Sprintf("not enough stock for %s: requested %d, available %d", name, s.Required, s.Available)
	}
	return fmt.Sprintf("not enough stock for %d products", len(e.Shortages))
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

func InsufficientStock(shortages ...Shortage) error {
	return &InsufficientStockError{Shortages: shortages}
}
