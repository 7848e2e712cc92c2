package admin

import "errors"

var (
	ErrEventNotFound = errors.New("event not found")
	ErrHasBookings   = errors.New("event has confirmed bookings")
	ErrInvalidInput  = errors.New("invalid input")
)
