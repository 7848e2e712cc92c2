package domain

import (
	"strings"

	"github.com/google/uuid"
)

// BookingCodePrefix is the fixed prefix of every public booking code.
const BookingCodePrefix = "EVT"

// NewBookingCode returns a public booking code of the form EVT-XXXXXXXX,
// where the suffix is the first group of a random UUID, uppercased.
// Codes are used as exact-match lookup keys; the bookings table carries a
// unique constraint on the column, so an (astronomically unlikely) collision
// surfaces as a conflict at insert time rather than silently reusing a code.
func NewBookingCode() string {
	id := uuid.New().String()
	return BookingCodePrefix + "-" + strings.ToUpper(id[:8])
}
