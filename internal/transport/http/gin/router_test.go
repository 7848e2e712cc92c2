package httpgin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventix/eventix/internal/domain"
	"github.com/eventix/eventix/internal/realtime"
	"github.com/eventix/eventix/internal/service/admin"
	"github.com/eventix/eventix/internal/service/booking"
	"github.com/eventix/eventix/internal/service/catalog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCatalog struct {
	events []domain.Event
	event  *domain.Event
	err    error

	gotFilter domain.EventFilter
}

func (s *stubCatalog) List(_ context.Context, f domain.EventFilter) ([]domain.Event, error) {
	s.gotFilter = f
	return s.events, s.err
}

func (s *stubCatalog) GetEvent(context.Context, int64) (*domain.Event, error) {
	return s.event, s.err
}

type stubBooking struct {
	bwe *domain.BookingWithEvent
	err error
}

func (s *stubBooking) Reserve(context.Context, booking.ReserveInput, string) (*domain.BookingWithEvent, error) {
	return s.bwe, s.err
}
func (s *stubBooking) Cancel(context.Context, int64) error { return s.err }
func (s *stubBooking) GetByCode(context.Context, string) (*domain.BookingWithEvent, error) {
	return s.bwe, s.err
}
func (s *stubBooking) ListAll(context.Context) ([]domain.BookingWithEvent, error) {
	return nil, s.err
}
func (s *stubBooking) ListByEvent(context.Context, int64) ([]domain.Booking, error) {
	return nil, s.err
}

type stubAdmin struct {
	event *domain.Event
	err   error
}

func (s *stubAdmin) CreateEvent(context.Context, admin.CreateEventInput) (*domain.Event, error) {
	return s.event, s.err
}
func (s *stubAdmin) UpdateEvent(context.Context, int64, admin.UpdateEventInput) (*domain.Event, error) {
	return s.event, s.err
}
func (s *stubAdmin) DeleteEvent(context.Context, int64) error { return s.err }

type routerOpts struct {
	catalog CatalogService
	booking BookingService
	admin   AdminService
	hub     *realtime.Hub
}

func newTestRouter(opts routerOpts) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.hub == nil {
		opts.hub = realtime.NewHub(logger)
	}
	return NewRouter(Deps{
		Catalog: opts.catalog,
		Booking: opts.booking,
		Admin:   opts.admin,
		Hub:     opts.hub,
		Logger:  logger,
	})
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	r := newTestRouter(routerOpts{})

	w := do(t, r, http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","message":"Server is running"}`, w.Body.String())
}

func TestListEvents(t *testing.T) {
	cat := &stubCatalog{events: []domain.Event{
		{ID: 1, Title: "Go Conference", AvailableSeats: 10},
	}}
	r := newTestRouter(routerOpts{catalog: cat})

	w := do(t, r, http.MethodGet, "/api/events?search=go&location=berlin&date=2026-10-01", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	assert.Equal(t, "go", cat.gotFilter.Search)
	assert.Equal(t, "berlin", cat.gotFilter.Location)
	require.NotNil(t, cat.gotFilter.Date)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *cat.gotFilter.Date)
}

func TestListEvents_InvalidDate(t *testing.T) {
	r := newTestRouter(routerOpts{catalog: &stubCatalog{}})

	w := do(t, r, http.MethodGet, "/api/events?date=not-a-date", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decodeError(t, w).Success)
}

func TestGetEvent_NotFound(t *testing.T) {
	r := newTestRouter(routerOpts{catalog: &stubCatalog{err: catalog.ErrEventNotFound}})

	w := do(t, r, http.MethodGet, "/api/events/99", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found", decodeError(t, w).Error)
}

func TestGetEvent_InvalidID(t *testing.T) {
	r := newTestRouter(routerOpts{catalog: &stubCatalog{}})

	w := do(t, r, http.MethodGet, "/api/events/abc", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBooking_Success(t *testing.T) {
	bwe := &domain.BookingWithEvent{
		Booking: domain.Booking{
			ID:          1,
			EventID:     2,
			BookingCode: "EVT-1A2B3C4D",
			Status:      domain.BookingConfirmed,
		},
		EventTitle: "Go Conference",
	}
	r := newTestRouter(routerOpts{booking: &stubBooking{bwe: bwe}})

	body := `{"event_id":2,"name":"Alice","email":"alice@example.com","mobile":"123456","quantity":2}`
	w := do(t, r, http.MethodPost, "/api/bookings", body)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestCreateBooking_MissingFields(t *testing.T) {
	r := newTestRouter(routerOpts{booking: &stubBooking{}})

	w := do(t, r, http.MethodPost, "/api/bookings", `{"event_id":2}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "All fields are required", decodeError(t, w).Error)
}

func TestCreateBooking_QuantityOverCap(t *testing.T) {
	r := newTestRouter(routerOpts{booking: &stubBooking{}})

	body := `{"event_id":2,"name":"Alice","email":"alice@example.com","mobile":"123456","quantity":11}`
	w := do(t, r, http.MethodPost, "/api/bookings", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBooking_InsufficientSeats(t *testing.T) {
	r := newTestRouter(routerOpts{booking: &stubBooking{
		err: &booking.InsufficientSeatsError{Available: 2},
	}})

	body := `{"event_id":2,"name":"Alice","email":"alice@example.com","mobile":"123456","quantity":5}`
	w := do(t, r, http.MethodPost, "/api/bookings", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only 2 seats available", decodeError(t, w).Error)
}

func TestCreateBooking_RateLimited(t *testing.T) {
	r := newTestRouter(routerOpts{booking: &stubBooking{err: booking.ErrRateLimited}})

	body := `{"event_id":2,"name":"Alice","email":"alice@example.com","mobile":"123456","quantity":1}`
	w := do(t, r, http.MethodPost, "/api/bookings", body)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestCancelBooking_AlreadyCancelled(t *testing.T) {
	r := newTestRouter(routerOpts{booking: &stubBooking{err: booking.ErrAlreadyCancelled}})

	w := do(t, r, http.MethodPut, "/api/bookings/5/cancel", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Booking already cancelled", decodeError(t, w).Error)
}

func TestCancelBooking_NotFound(t *testing.T) {
	r := newTestRouter(routerOpts{booking: &stubBooking{err: booking.ErrBookingNotFound}})

	w := do(t, r, http.MethodPut, "/api/bookings/5/cancel", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Booking not found", decodeError(t, w).Error)
}

func TestGetBookingByCode_NotFound(t *testing.T) {
	r := newTestRouter(routerOpts{booking: &stubBooking{err: booking.ErrBookingNotFound}})

	w := do(t, r, http.MethodGet, "/api/bookings/code/EVT-DEADBEEF", "")

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateEvent_InvalidDate(t *testing.T) {
	r := newTestRouter(routerOpts{admin: &stubAdmin{}})

	body := `{"title":"Concert","location":"Berlin","date":"soon"}`
	w := do(t, r, http.MethodPost, "/api/events", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid date", decodeError(t, w).Error)
}

func TestCreateEvent_Success(t *testing.T) {
	r := newTestRouter(routerOpts{admin: &stubAdmin{
		event: &domain.Event{ID: 1, Title: "Concert", TotalSeats: 100, AvailableSeats: 100},
	}})

	body := `{"title":"Concert","location":"Berlin","date":"2026-11-05"}`
	w := do(t, r, http.MethodPost, "/api/events", body)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestDeleteEvent_HasBookings(t *testing.T) {
	r := newTestRouter(routerOpts{admin: &stubAdmin{err: admin.ErrHasBookings}})

	w := do(t, r, http.MethodDelete, "/api/events/1", "")

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Event has confirmed bookings", decodeError(t, w).Error)
}

func TestRealtimeJoin_UnknownClient(t *testing.T) {
	r := newTestRouter(routerOpts{})

	w := do(t, r, http.MethodPost, "/realtime/no-such-client/events/1", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Unknown realtime client", decodeError(t, w).Error)
}

func TestRealtimeJoinLeave_KnownClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := realtime.NewHub(logger)
	r := newTestRouter(routerOpts{hub: hub})

	client := hub.Connect()
	defer hub.Disconnect(client)

	w := do(t, r, http.MethodPost, "/realtime/"+client.ID()+"/events/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodDelete, "/realtime/"+client.ID()+"/events/1", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestListEvents_ETagRoundTrip(t *testing.T) {
	cat := &stubCatalog{events: []domain.Event{{ID: 1, Title: "Go Conference"}}}
	r := newTestRouter(routerOpts{catalog: cat})

	first := do(t, r, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}
