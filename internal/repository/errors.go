package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
)

// InsufficientSeatsError is returned when a reservation asks for more seats
// than the event has left. Available carries the count observed under the
// row lock so callers can surface it to the user.
type InsufficientSeatsError struct {
	Available int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("only %d seats available", e.Available)
}
