package orders

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDependencyFailure = errors.New("dependency failure")

	// ErrPartialSaga marks a saga left half-applied: an order exists whose
	// stock debit (or a deleted order whose credit) was not recorded.
	ErrPartialSaga = errors.New("partial saga failure")
)

// ErrAlreadyDelivered is the Conflict returned when cancelling a Delivered order.
var ErrAlreadyDelivered = fmt.Errorf("%w: order already delivered", ErrConflict)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
