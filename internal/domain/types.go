package domain

import "time"

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type Event struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Date           time.Time `json:"date"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	Price          float64   `json:"price"`
	Img            string    `json:"img"`
	CreatedAt      time.Time `json:"created_at"`
}

type Booking struct {
	ID          int64         `json:"id"`
	EventID     int64         `json:"event_id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Mobile      string        `json:"mobile"`
	Quantity    int           `json:"quantity"`
	TotalAmount float64       `json:"total_amount"`
	BookingCode string        `json:"booking_code"`
	Status      BookingStatus `json:"status"`
	BookingDate time.Time     `json:"booking_date"`
}

// BookingWithEvent is a booking joined with the display fields of its event.
type BookingWithEvent struct {
	Booking
	EventTitle    string    `json:"event_title"`
	EventDate     time.Time `json:"event_date"`
	EventLocation string    `json:"event_location"`
	EventImg      string    `json:"event_img"`
}

// EventFilter narrows an event listing. Zero values mean "no filter".
type EventFilter struct {
	Search   string     // substring match on title or description
	Location string     // substring match on location
	Date     *time.Time // exact calendar date
	From     *time.Time
	To       *time.Time
}

// SeatUpdate is the inventory delta pushed to viewers after a booking
// transaction commits.
type SeatUpdate struct {
	EventID        int64 `json:"event_id"`
	AvailableSeats int   `json:"available_seats"`
}
