package orders

import (
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", apperr.Validation("invalid order status %q", s)
	}
	return st, nil
}

// Event is something that happened to an order and may move its status.
type Event string

const (
	PaymentSucceeded Event = "PaymentSucceeded"
	PaymentFailed    Event = "PaymentFailed"
	PaymentPending   Event = "PaymentPending"
	InvoiceSent      Event = "InvoiceSent"
)

// Next returns the status an order in current moves to when ev happens.
// Re-applying the status an order already has is a no-op.
func Next(current Status, ev Event) (Status, error) {
	var target Status
	switch ev {
	case PaymentSucceeded:
		target = StatusProcessing
	case PaymentFailed:
		target = StatusCancelled
	case PaymentPending:
		target = StatusPending
	case InvoiceSent:
		// fallback promotion for a paid order the webhook never advanced
		if current != StatusPending {
			return current, nil
		}
		target = StatusProcessing
	default:
		return current, apperr.Validation("unknown order event %q", string(ev))
	}
	return Override(current, target)
}

// Override is the administrative path. It may jump to any status the
// transition table allows, and nothing else.
func Override(current, target Status) (Status, error) {
	if !target.Valid() {
		return current, apperr.Validation("invalid order status %q", string(target))
	}
	if current == target {
		return current, nil
	}
	if !CanTransition(current, target) {
		return current, apperr.InvalidTransition(string(current), string(target))
	}
	return target, nil
}
