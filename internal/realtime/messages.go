package realtime

import (
	"encoding/json"

	"github.com/eventix/eventix/internal/domain"
)

// Message kinds delivered to connected viewers. The names double as SSE
// event names, so the browser client listens for them verbatim.
const (
	KindEventCreated   = "eventCreated"
	KindEventUpdated   = "eventUpdated"
	KindEventDeleted   = "eventDeleted"
	KindSeatUpdate     = "seatUpdate"
	KindBookingCreated = "bookingCreated"
)

// Message is a single realtime delta. EventID is set for deltas scoped to
// one event; Data carries the kind-specific JSON payload.
type Message struct {
	Kind    string          `json:"kind"`
	EventID int64           `json:"event_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func EventCreatedMessage(e domain.Event) Message {
	return Message{Kind: KindEventCreated, EventID: e.ID, Data: mustJSON(e)}
}

func EventUpdatedMessage(e domain.Event) Message {
	return Message{Kind: KindEventUpdated, EventID: e.ID, Data: mustJSON(e)}
}

func EventDeletedMessage(eventID int64) Message {
	return Message{
		Kind:    KindEventDeleted,
		EventID: eventID,
		Data:    mustJSON(map[string]int64{"id": eventID}),
	}
}

func SeatUpdateMessage(u domain.SeatUpdate) Message {
	return Message{Kind: KindSeatUpdate, EventID: u.EventID, Data: mustJSON(u)}
}

func BookingCreatedMessage(b domain.BookingWithEvent) Message {
	return Message{Kind: KindBookingCreated, EventID: b.EventID, Data: mustJSON(b)}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// all payload types above marshal without error
		panic(err)
	}
	return b
}
