package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		event   Event
		want    Status
		wantErr error
	}{
		{"paid", StatusPending, PaymentSucceeded, StatusProcessing, nil},
		{"payment failed", StatusPending, PaymentFailed, StatusCancelled, nil},
		{"payment pending is a no-op", StatusPending, PaymentPending, StatusPending, nil},
		{"paid twice", StatusProcessing, PaymentSucceeded, StatusProcessing, nil},
		{"late failure cancels processing", StatusProcessing, PaymentFailed, StatusCancelled, nil},
		{"pending after processing", StatusProcessing, PaymentPending, StatusProcessing, apperr.ErrInvalidTransition},
		{"paid after cancel", StatusCancelled, PaymentSucceeded, StatusCancelled, apperr.ErrInvalidTransition},
		{"paid after complete", StatusCompleted, PaymentSucceeded, StatusCompleted, apperr.ErrInvalidTransition},
		{"invoice promotes pending", StatusPending, InvoiceSent, StatusProcessing, nil},
		{"invoice leaves processing", StatusProcessing, InvoiceSent, StatusProcessing, nil},
		{"invoice leaves cancelled", StatusCancelled, InvoiceSent, StatusCancelled, nil},
		{"unknown event", StatusPending, Event("Refunded"), StatusPending, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.current, tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOverrideHonoursTable(t *testing.T) {
	got, err := Override(StatusProcessing, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got)

	_, err = Override(StatusCompleted, StatusPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = Override(StatusCancelled, StatusProcessing)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = Override(StatusPending, Status("SHIPPED"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled} {
			assert.False(t, CanTransition(s, to), "%s -> %s", s, to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" processing ")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, s)

	_, err = ParseStatus("SHIPPED")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
