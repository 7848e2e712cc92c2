package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eventix/eventix/internal/domain"
	"github.com/eventix/eventix/internal/realtime"
	"github.com/eventix/eventix/internal/repository"
)

// MaxQuantityPerOrder caps one booking. The original UI enforced this on the
// client only; here it is a server-side rule.
const MaxQuantityPerOrder = 10

// Store is the ledger the service books against. The production
// implementation runs each call as one database transaction holding a
// row-level write lock on the event.
type Store interface {
	Reserve(ctx context.Context, b *domain.Booking) (*domain.BookingWithEvent, int, error)
	Cancel(ctx context.Context, bookingID int64) (*domain.SeatUpdate, error)
	GetByCode(ctx context.Context, code string) (*domain.BookingWithEvent, error)
	ListAll(ctx context.Context) ([]domain.BookingWithEvent, error)
	ListByEvent(ctx context.Context, eventID int64) ([]domain.Booking, error)
}

// Publisher pushes realtime deltas to connected viewers. Publishing happens
// only after the storage transaction committed and is best-effort.
type Publisher interface {
	Publish(ctx context.Context, msg realtime.Message) error
}

// CacheInvalidator drops cached reads that a committed write made stale.
type CacheInvalidator interface {
	InvalidateEvent(ctx context.Context, eventID int64) error
}

// RateLimiter throttles reservation attempts per caller key.
type RateLimiter interface {
	Allow(ctx context.Context, suffix string) (bool, int64, time.Duration, error)
}

type Service struct {
	store   Store
	pub     Publisher
	cache   CacheInvalidator
	limiter RateLimiter
	locks   eventLocks
	logger  *slog.Logger
}

func New(store Store, pub Publisher, cache CacheInvalidator, limiter RateLimiter, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		pub:     pub,
		cache:   cache,
		limiter: limiter,
		logger:  logger,
	}
}

// ReserveInput carries a booking request. All fields are required.
type ReserveInput struct {
	EventID  int64
	Name     string
	Email    string
	Mobile   string
	Quantity int
}

func (in ReserveInput) validate() error {
	if in.EventID <= 0 {
		return fmt.Errorf("%w: event_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Name) == "" ||
		strings.TrimSpace(in.Email) == "" ||
		strings.TrimSpace(in.Mobile) == "" {
		return fmt.Errorf("%w: name, email and mobile are required", ErrInvalidInput)
	}
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if in.Quantity > MaxQuantityPerOrder {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrInvalidInput, MaxQuantityPerOrder)
	}
	return nil
}

// Reserve books seats on an event. It validates the request before any
// transaction is opened, serializes against other operations on the same
// event, and on success publishes the new seat count and the created
// booking to all viewers.
//
// Returns:
//   - *domain.BookingWithEvent: the confirmed booking joined with event
//     display fields.
//   - error: booking.ErrInvalidInput for missing or malformed fields.
//   - error: booking.ErrEventNotFound if the event does not exist.
//   - error: *booking.InsufficientSeatsError if fewer seats remain than
//     requested.
//   - error: booking.ErrRateLimited if the caller key is over its quota.
func (s *Service) Reserve(ctx context.Context, in ReserveInput, rlKey string) (*domain.BookingWithEvent, error) {
	const op = "service.booking.Reserve"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w: retry in %s", op, ErrRateLimited, retry)
		}
	}

	unlock := s.locks.lock(in.EventID)
	defer unlock()

	b := &domain.Booking{
		EventID:     in.EventID,
		Name:        in.Name,
		Email:       in.Email,
		Mobile:      in.Mobile,
		Quantity:    in.Quantity,
		BookingCode: domain.NewBookingCode(),
	}

	bwe, left, err := s.store.Reserve(ctx, b)
	if err != nil {
		var insuff *repository.InsufficientSeatsError
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		case errors.As(err, &insuff):
			return nil, fmt.Errorf("%s:%w", op, &InsufficientSeatsError{Available: insuff.Available})
		default:
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	s.afterCommit(ctx, bwe.EventID,
		realtime.SeatUpdateMessage(domain.SeatUpdate{EventID: bwe.EventID, AvailableSeats: left}),
		realtime.BookingCreatedMessage(*bwe),
	)

	return bwe, nil
}

// Cancel flips a confirmed booking to cancelled and returns its seats to
// the event. Cancelling an already-cancelled booking fails; it is not a
// silent no-op.
//
// Returns:
//   - error: booking.ErrBookingNotFound if the booking does not exist.
//   - error: booking.ErrAlreadyCancelled if the booking is not confirmed.
func (s *Service) Cancel(ctx context.Context, bookingID int64) error {
	const op = "service.booking.Cancel"

	if bookingID <= 0 {
		return fmt.Errorf("%s:%w: booking id is required", op, ErrInvalidInput)
	}

	upd, err := s.store.Cancel(ctx, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		case errors.Is(err, repository.ErrAlreadyCancelled):
			return fmt.Errorf("%s:%w", op, ErrAlreadyCancelled)
		default:
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	s.afterCommit(ctx, upd.EventID, realtime.SeatUpdateMessage(*upd))

	return nil
}

// GetByCode retrieves a booking by its public booking code (case-sensitive
// exact match).
func (s *Service) GetByCode(ctx context.Context, code string) (*domain.BookingWithEvent, error) {
	const op = "service.booking.GetByCode"

	bwe, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return bwe, nil
}

// ListAll returns every booking joined with event display fields, newest
// first. Serves the admin dashboard.
func (s *Service) ListAll(ctx context.Context) ([]domain.BookingWithEvent, error) {
	const op = "service.booking.ListAll"

	out, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListByEvent returns the confirmed bookings of one event, newest first.
func (s *Service) ListByEvent(ctx context.Context, eventID int64) ([]domain.Booking, error) {
	const op = "service.booking.ListByEvent"

	out, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// afterCommit runs the best-effort side effects of a committed booking
// transaction. Failures are logged and swallowed; the write already
// happened and must not be reported as failed.
func (s *Service) afterCommit(ctx context.Context, eventID int64, msgs ...realtime.Message) {
	if s.cache != nil {
		if err := s.cache.InvalidateEvent(ctx, eventID); err != nil {
			s.logger.Warn("cache invalidation failed", "event_id", eventID, "error", err)
		}
	}

	for _, msg := range msgs {
		if err := s.pub.Publish(ctx, msg); err != nil {
			s.logger.Warn("realtime publish failed", "kind", msg.Kind, "error", err)
		}
	}
}
