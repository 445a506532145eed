// README: Error taxonomy for order operations.
package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyAssigned   = errors.New("order already assigned")
	ErrAlreadyDelivered  = errors.New("order already delivered")
	ErrDriverUnavailable = errors.New("driver unavailable")
	ErrConflict          = errors.New("order was just updated, please retry")
	ErrValidation        = errors.New("invalid request")
	ErrStorage           = errors.New("storage failure")
)

// transitionError builds an ErrInvalidTransition naming the rejected move,
// e.g. `cannot move delivery from "picked_up" to "assigned"`.
func transitionError(field, from, to string) error {
	return fmt.Errorf("%w: cannot move %s from %q to %q", ErrInvalidTransition, field, from, to)
}

func storageError(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
