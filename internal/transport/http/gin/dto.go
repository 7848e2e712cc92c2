package httpgin

import "time"

type CreateBookingRequest struct {
	EventID  int64  `json:"event_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Mobile   string `json:"mobile" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gte=1,lte=10"`
}

type CreateEventRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Location    string   `json:"location" binding:"required"`
	Date        string   `json:"date" binding:"required"`
	TotalSeats  *int     `json:"total_seats" binding:"omitempty,gt=0"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
	Img         string   `json:"img"`
}

// UpdateEventRequest patches an event; absent fields keep their value.
type UpdateEventRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Location    *string  `json:"location"`
	Date        *string  `json:"date"`
	TotalSeats  *int     `json:"total_seats" binding:"omitempty,gt=0"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
	Img         *string  `json:"img"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type ConnectedResponse struct {
	ClientID string `json:"client_id"`
}

func errorResponse(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}

func successResponse(data any) SuccessResponse {
	return SuccessResponse{Success: true, Data: data}
}

// parseDate accepts a bare calendar date or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
