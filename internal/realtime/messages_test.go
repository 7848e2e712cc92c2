package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventix/eventix/internal/domain"
)

func TestSeatUpdateMessage(t *testing.T) {
	msg := SeatUpdateMessage(domain.SeatUpdate{EventID: 7, AvailableSeats: 42})

	assert.Equal(t, KindSeatUpdate, msg.Kind)
	assert.Equal(t, int64(7), msg.EventID)
	assert.JSONEq(t, `{"event_id":7,"available_seats":42}`, string(msg.Data))
}

func TestEventDeletedMessage(t *testing.T) {
	msg := EventDeletedMessage(3)

	assert.Equal(t, KindEventDeleted, msg.Kind)
	assert.Equal(t, int64(3), msg.EventID)
	assert.JSONEq(t, `{"id":3}`, string(msg.Data))
}

func TestBookingCreatedMessage(t *testing.T) {
	bwe := domain.BookingWithEvent{
		Booking: domain.Booking{
			ID:          12,
			EventID:     7,
			BookingCode: "EVT-1A2B3C4D",
			Status:      domain.BookingConfirmed,
		},
		EventTitle: "Go Conference",
	}

	msg := BookingCreatedMessage(bwe)

	assert.Equal(t, KindBookingCreated, msg.Kind)
	assert.Equal(t, int64(7), msg.EventID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "EVT-1A2B3C4D", payload["booking_code"])
	assert.Equal(t, "Go Conference", payload["event_title"])
}
