package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_PassesDomainErrors(t *testing.T) {
	err := NotFound("order %s not found", "o-1")
	wrapped := Wrap("get order", err)

	assert.Same(t, err, wrapped)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, "order o-1 not found", wrapped.Error())
}

func TestWrap_HidesStorageErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap("checkout", cause)

	assert.ErrorIs(t, err, ErrDependency)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", err.Error())
	assert.False(t, IsDomain(err))
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap("noop", nil))
}

func TestInsufficientStock_MatchesKind(t *testing.T) {
	err := InsufficientStock(Shortage{ProductID: "p-1", Name: "Mug", Required: 3, Available: 1})

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.True(t, IsDomain(err))
	assert.Contains(t, err.Error(), "Mug")

	var ise *InsufficientStockError
	assert.True(t, errors.As(err, &ise))
	assert.Len(t, ise.Shortages, 1)
}

func TestInsufficientStock_Several(t *testing.T) {
	err := InsufficientStock(
		Shortage{ProductID: "a", Required: 2, Available: 1},
		Shortage{ProductID: "b", Required: 5, Available: 0},
	)
	assert.Equal(t, "not enough stock for 2 products", err.Error())
}
