package booking

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRateLimited      = errors.New("rate limited")
)

// InsufficientSeatsError reports a reservation that asked for more seats
// than the event had left. The message wording is part of the public API.
type InsufficientSeatsError struct {
	Available int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("Only %d seats available", e.Available)
}
