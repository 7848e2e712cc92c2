package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eventix/eventix/internal/domain"
	"github.com/eventix/eventix/internal/realtime"
	redisx "github.com/eventix/eventix/internal/redis"
	"github.com/eventix/eventix/internal/repository"
	postgresrepo "github.com/eventix/eventix/internal/repository/postgres"
	redisrepo "github.com/eventix/eventix/internal/repository/redis"
	"github.com/eventix/eventix/internal/uow"
)

// DefaultTotalSeats is used when an event is created without a seat count.
const DefaultTotalSeats = 100

// Service owns the admin mutations on the event inventory. Every mutation
// commits first and only then pushes its realtime delta, through the unit
// of work's after-commit hooks.
type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisx.RealtimePubSub
	uow    *uow.UoW
	logger *slog.Logger
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, pubsub *redisx.RealtimePubSub, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
		logger: logger,
	}
}

type CreateEventInput struct {
	Title       string
	Description string
	Location    string
	Date        time.Time
	TotalSeats  *int
	Price       *float64
	Img         string
}

// UpdateEventInput patches an event. Nil fields keep their current value.
type UpdateEventInput struct {
	Title       *string
	Description *string
	Location    *string
	Date        *time.Time
	TotalSeats  *int
	Price       *float64
	Img         *string
}

// CreateEvent inserts a new event. A new event starts fully available:
// available_seats equals total_seats (100 when omitted).
//
// Returns:
//   - error: admin.ErrInvalidInput for missing title/location/date or a
//     non-positive seat count.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (*domain.Event, error) {
	const op = "service.admin.CreateEvent"

	if strings.TrimSpace(in.Title) == "" ||
		strings.TrimSpace(in.Location) == "" ||
		in.Date.IsZero() {
		return nil, fmt.Errorf("%s:%w: title, location and date are required", op, ErrInvalidInput)
	}

	seats := DefaultTotalSeats
	if in.TotalSeats != nil {
		if *in.TotalSeats <= 0 {
			return nil, fmt.Errorf("%s:%w: total_seats must be positive", op, ErrInvalidInput)
		}
		seats = *in.TotalSeats
	}

	price := 0.0
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, fmt.Errorf("%s:%w: price must not be negative", op, ErrInvalidInput)
		}
		price = *in.Price
	}

	e := &domain.Event{
		Title:          in.Title,
		Description:    in.Description,
		Location:       in.Location,
		Date:           in.Date,
		TotalSeats:     seats,
		AvailableSeats: seats,
		Price:          price,
		Img:            in.Img,
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		id, err := s.store.Events().With(tx).Create(ctx, e)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		e.ID = id

		after(func(ctx context.Context) {
			s.publish(ctx, realtime.EventCreatedMessage(*e))
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return e, nil
}

// UpdateEvent patches an event inside one transaction. When total_seats
// changes, available_seats is recomputed against the seats already booked,
// floored at zero.
//
// Returns:
//   - error: admin.ErrEventNotFound if the event does not exist.
func (s *Service) UpdateEvent(ctx context.Context, id int64, in UpdateEventInput) (*domain.Event, error) {
	const op = "service.admin.UpdateEvent"

	var updated domain.Event

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		e, err := s.store.Events().With(tx).GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrEventNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if in.Title != nil {
			e.Title = *in.Title
		}
		if in.Description != nil {
			e.Description = *in.Description
		}
		if in.Location != nil {
			e.Location = *in.Location
		}
		if in.Date != nil {
			e.Date = *in.Date
		}
		if in.Price != nil {
			e.Price = *in.Price
		}
		if in.Img != nil {
			e.Img = *in.Img
		}
		if in.TotalSeats != nil && *in.TotalSeats != e.TotalSeats {
			e.AvailableSeats = availableAfterResize(*in.TotalSeats, e.TotalSeats, e.AvailableSeats)
			e.TotalSeats = *in.TotalSeats
		}

		if err := s.store.Events().With(tx).Update(ctx, e); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		updated = *e

		after(func(ctx context.Context) {
			if err := s.cache.InvalidateEvent(ctx, id); err != nil {
				s.logger.Warn("cache invalidation failed", "event_id", id, "error", err)
			}
			s.publish(ctx, realtime.EventUpdatedMessage(updated))
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteEvent removes an event. Deleting an event that still has confirmed
// bookings is rejected so the booking ledger never references a missing
// event.
//
// Returns:
//   - error: admin.ErrEventNotFound if the event does not exist.
//   - error: admin.ErrHasBookings if confirmed bookings reference the event.
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	const op = "service.admin.DeleteEvent"

	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		booked, err := s.store.Events().With(tx).ConfirmedQuantity(ctx, id)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if booked > 0 {
			return fmt.Errorf("%s:%w", op, ErrHasBookings)
		}

		if err := s.store.Events().With(tx).Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrEventNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			if err := s.cache.InvalidateEvent(ctx, id); err != nil {
				s.logger.Warn("cache invalidation failed", "event_id", id, "error", err)
			}
			s.publish(ctx, realtime.EventDeletedMessage(id))
		})

		return nil
	})
}

func (s *Service) publish(ctx context.Context, msg realtime.Message) {
	if err := s.pubsub.Publish(ctx, msg); err != nil {
		s.logger.Warn("realtime publish failed", "kind", msg.Kind, "error", err)
	}
}

// availableAfterResize recomputes an event's availability when its total
// seat count changes: seats already booked stay booked, and the result is
// floored at zero when the new total is below the booked count.
func availableAfterResize(newTotal, oldTotal, oldAvailable int) int {
	booked := oldTotal - oldAvailable
	available := newTotal - booked
	if available < 0 {
		return 0
	}
	return available
}
