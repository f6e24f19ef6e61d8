package order

import "errors"

// Reason identifies why an order could not be built.
type Reason string

const (
	ReasonEmptyCart      Reason = "EMPTY_CART"
	ReasonMissingContact Reason = "MISSING_CONTACT"
)

var (
	ErrEmptyCart      = &ValidationError{Reason: ReasonEmptyCart}
	ErrMissingContact = &ValidationError{Reason: ReasonMissingContact}
)

type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmptyCart:
		return "cart is empty, nothing to order"
	case ReasonMissingContact:
		return "phone and address are required"
	default:
		return "invalid order"
	}
}

// Is matches any ValidationError with the same reason, so errors.Is(err, ErrEmptyCart) works
// for wrapped copies.
func (e *ValidationError) Is(target error) bool {
	var ve *ValidationError
	if !errors.As(target, &ve) {
		return false
	}
	return ve.Reason == e.Reason
}
