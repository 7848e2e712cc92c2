package booking

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventix/eventix/internal/domain"
	"github.com/eventix/eventix/internal/realtime"
	"github.com/eventix/eventix/internal/repository"
)

// fakeStore is an in-memory ledger. It does no locking of its own: the
// service's per-event serialization is what keeps concurrent reservations
// race-free, and the concurrency test below runs with -race to prove it.
type fakeStore struct {
	event    domain.Event
	missing  bool
	bookings map[int64]*domain.Booking
	nextID   int64
}

func newFakeStore(available int, price float64) *fakeStore {
	return &fakeStore{
		event: domain.Event{
			ID:             1,
			Title:          "Go Conference",
			Location:       "Berlin",
			Date:           time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC),
			TotalSeats:     available,
			AvailableSeats: available,
			Price:          price,
		},
		bookings: make(map[int64]*domain.Booking),
	}
}

func (f *fakeStore) Reserve(_ context.Context, b *domain.Booking) (*domain.BookingWithEvent, int, error) {
	if f.missing || b.EventID != f.event.ID {
		return nil, 0, repository.ErrNotFound
	}
	if f.event.AvailableSeats < b.Quantity {
		return nil, 0, &repository.InsufficientSeatsError{Available: f.event.AvailableSeats}
	}

	f.nextID++
	b.ID = f.nextID
	b.TotalAmount = f.event.Price * float64(b.Quantity)
	b.Status = domain.BookingConfirmed
	b.BookingDate = time.Now()
	f.event.AvailableSeats -= b.Quantity

	cp := *b
	f.bookings[b.ID] = &cp

	return &domain.BookingWithEvent{
		Booking:       cp,
		EventTitle:    f.event.Title,
		EventDate:     f.event.Date,
		EventLocation: f.event.Location,
	}, f.event.AvailableSeats, nil
}

func (f *fakeStore) Cancel(_ context.Context, bookingID int64) (*domain.SeatUpdate, error) {
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != domain.BookingConfirmed {
		return nil, repository.ErrAlreadyCancelled
	}
	b.Status = domain.BookingCancelled
	f.event.AvailableSeats += b.Quantity
	return &domain.SeatUpdate{EventID: b.EventID, AvailableSeats: f.event.AvailableSeats}, nil
}

func (f *fakeStore) GetByCode(_ context.Context, code string) (*domain.BookingWithEvent, error) {
	for _, b := range f.bookings {
		if b.BookingCode == code {
			return &domain.BookingWithEvent{Booking: *b, EventTitle: f.event.Title}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) ListAll(_ context.Context) ([]domain.BookingWithEvent, error) {
	out := make([]domain.BookingWithEvent, 0, len(f.bookings))
	for _, b := range f.bookings {
		out = append(out, domain.BookingWithEvent{Booking: *b, EventTitle: f.event.Title})
	}
	return out, nil
}

func (f *fakeStore) ListByEvent(_ context.Context, eventID int64) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.EventID == eventID && b.Status == domain.BookingConfirmed {
			out = append(out, *b)
		}
	}
	return out, nil
}

// fakePublisher records published messages.
type fakePublisher struct {
	mu   sync.Mutex
	msgs []realtime.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg realtime.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.Kind
	}
	return out
}

type fakeLimiter struct {
	allowed bool
	retry   time.Duration
}

func (f *fakeLimiter) Allow(context.Context, string) (bool, int64, time.Duration, error) {
	return f.allowed, 0, f.retry, nil
}

func newTestService(store Store, pub Publisher) *Service {
	return New(store, pub, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func validInput() ReserveInput {
	return ReserveInput{
		EventID:  1,
		Name:     "Alice",
		Email:    "alice@example.com",
		Mobile:   "+4915112345678",
		Quantity: 2,
	}
}

func TestReserve_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ReserveInput)
	}{
		{"missing event id", func(in *ReserveInput) { in.EventID = 0 }},
		{"missing name", func(in *ReserveInput) { in.Name = "  " }},
		{"missing email", func(in *ReserveInput) { in.Email = "" }},
		{"missing mobile", func(in *ReserveInput) { in.Mobile = "" }},
		{"zero quantity", func(in *ReserveInput) { in.Quantity = 0 }},
		{"negative quantity", func(in *ReserveInput) { in.Quantity = -3 }},
		{"quantity over cap", func(in *ReserveInput) { in.Quantity = MaxQuantityPerOrder + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(100, 10)
			svc := newTestService(store, &fakePublisher{})

			in := validInput()
			tt.mutate(&in)

			_, err := svc.Reserve(context.Background(), in, "")
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, store.bookings, "no transaction may be opened for invalid input")
		})
	}
}

func TestReserve_Success(t *testing.T) {
	store := newFakeStore(10, 25.50)
	pub := &fakePublisher{}
	svc := newTestService(store, pub)

	bwe, err := svc.Reserve(context.Background(), validInput(), "")
	require.NoError(t, err)

	assert.Equal(t, 51.0, bwe.TotalAmount)
	assert.Equal(t, domain.BookingConfirmed, bwe.Status)
	assert.Regexp(t, regexp.MustCompile(`^EVT-[0-9A-F]{8}$`), bwe.BookingCode)
	assert.Equal(t, 8, store.event.AvailableSeats)

	// seat update first, then the created booking
	require.Equal(t, []string{realtime.KindSeatUpdate, realtime.KindBookingCreated}, pub.kinds())
}

func TestReserve_EventNotFound(t *testing.T) {
	store := newFakeStore(10, 5)
	store.missing = true
	pub := &fakePublisher{}
	svc := newTestService(store, pub)

	_, err := svc.Reserve(context.Background(), validInput(), "")
	require.ErrorIs(t, err, ErrEventNotFound)
	assert.Empty(t, pub.kinds())
}

func TestReserve_InsufficientSeats(t *testing.T) {
	store := newFakeStore(1, 5)
	pub := &fakePublisher{}
	svc := newTestService(store, pub)

	in := validInput()
	in.Quantity = 2

	_, err := svc.Reserve(context.Background(), in, "")

	var insuff *InsufficientSeatsError
	require.ErrorAs(t, err, &insuff)
	assert.Equal(t, 1, insuff.Available)
	assert.EqualError(t, insuff, "Only 1 seats available")
	assert.Empty(t, pub.kinds())
}

func TestReserve_SoldOutMessage(t *testing.T) {
	store := newFakeStore(0, 5)
	svc := newTestService(store, &fakePublisher{})

	in := validInput()
	in.Quantity = 1

	_, err := svc.Reserve(context.Background(), in, "")

	var insuff *InsufficientSeatsError
	require.ErrorAs(t, err, &insuff)
	assert.EqualError(t, insuff, "Only 0 seats available")
}

func TestReserve_RateLimited(t *testing.T) {
	store := newFakeStore(10, 5)
	svc := New(store, &fakePublisher{}, nil, &fakeLimiter{allowed: false, retry: 30 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Reserve(context.Background(), validInput(), "203.0.113.9")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, store.bookings)
}

func TestReserve_RateLimiterSkippedWithoutKey(t *testing.T) {
	store := newFakeStore(10, 5)
	svc := New(store, &fakePublisher{}, nil, &fakeLimiter{allowed: false},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Reserve(context.Background(), validInput(), "")
	require.NoError(t, err)
}

func TestCancel_RestoresSeats(t *testing.T) {
	store := newFakeStore(10, 5)
	pub := &fakePublisher{}
	svc := newTestService(store, pub)

	bwe, err := svc.Reserve(context.Background(), validInput(), "")
	require.NoError(t, err)
	require.Equal(t, 8, store.event.AvailableSeats)

	require.NoError(t, svc.Cancel(context.Background(), bwe.ID))
	assert.Equal(t, 10, store.event.AvailableSeats)

	kinds := pub.kinds()
	require.Len(t, kinds, 3)
	assert.Equal(t, realtime.KindSeatUpdate, kinds[2])
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	store := newFakeStore(10, 5)
	svc := newTestService(store, &fakePublisher{})

	bwe, err := svc.Reserve(context.Background(), validInput(), "")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), bwe.ID))
	err = svc.Cancel(context.Background(), bwe.ID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	// seats were returned exactly once
	assert.Equal(t, 10, store.event.AvailableSeats)
}

func TestCancel_NotFound(t *testing.T) {
	svc := newTestService(newFakeStore(10, 5), &fakePublisher{})

	err := svc.Cancel(context.Background(), 999)
	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestGetByCode_NotFound(t *testing.T) {
	svc := newTestService(newFakeStore(10, 5), &fakePublisher{})

	_, err := svc.GetByCode(context.Background(), "EVT-DEADBEEF")
	require.ErrorIs(t, err, ErrBookingNotFound)
}

// TestReserve_NoOverbookingUnderContention fires many concurrent reservations
// at one event and asserts that exactly the seats that exist are sold:
// with N seats and quantity Q per request, exactly N/Q requests succeed and
// the rest fail with InsufficientSeatsError.
func TestReserve_NoOverbookingUnderContention(t *testing.T) {
	const (
		seats      = 50
		quantity   = 3
		attempts   = 100
		maxSuccess = seats / quantity // 16
	)

	store := newFakeStore(seats, 12)
	pub := &fakePublisher{}
	svc := newTestService(store, pub)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			in := validInput()
			in.Quantity = quantity

			_, err := svc.Reserve(context.Background(), in, "")

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failed++

			var insuff *InsufficientSeatsError
			assert.ErrorAs(t, err, &insuff)
		}()
	}
	wg.Wait()

	assert.Equal(t, maxSuccess, succeeded)
	assert.Equal(t, attempts-maxSuccess, failed)
	assert.Equal(t, seats-maxSuccess*quantity, store.event.AvailableSeats)
	assert.GreaterOrEqual(t, store.event.AvailableSeats, 0, "never oversold")
}
