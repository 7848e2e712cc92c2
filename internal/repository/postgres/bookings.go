package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventix/eventix/internal/domain"
	"github.com/eventix/eventix/internal/repository"
)

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const bookingJoinColumns = `b.id, b.event_id, b.name, b.email, b.mobile,
	b.quantity, b.total_amount, b.booking_code, b.status, b.booking_date,
	e.title, e.date, e.location, e.img`

// Reserve atomically books seats for an event: it locks the event row,
// verifies availability, inserts a confirmed booking and decrements the
// event's available seats in a single transaction.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - b: booking to insert; EventID, Name, Email, Mobile, Quantity and
//     BookingCode must be set. TotalAmount is computed from the locked
//     event row's price.
//
// Returns:
//   - *domain.BookingWithEvent: the created booking joined with event
//     display fields.
//   - int: the event's available seats after the decrement.
//   - error: repository.ErrNotFound if the event does not exist.
//   - error: *repository.InsufficientSeatsError if fewer seats are left
//     than requested.
//   - error: repository.ErrConflict on a booking-code collision.
func (r *BookingRepo) Reserve(ctx context.Context, b *domain.Booking) (*domain.BookingWithEvent, int, error) {
	const op = "postgres.BookingRepo.Reserve"

	if r.db != nil {
		bwe, left, err := r.reserveCore(ctx, r.db, b)
		if err != nil {
			return nil, 0, fmt.Errorf("%s:%w", op, err)
		}
		return bwe, left, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	bwe, left, err := r.reserveCore(ctx, tx, b)
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return bwe, left, nil
}

func (r *BookingRepo) reserveCore(ctx context.Context, db DB, b *domain.Booking) (*domain.BookingWithEvent, int, error) {
	var (
		title     string
		eventDate time.Time
		location  string
		img       string
		price     float64
		available int
	)

	// The row lock serializes concurrent check-then-decrement sequences
	// against the same event.
	err := db.QueryRow(ctx,
		`SELECT title, date, location, img, price, available_seats
		 FROM events WHERE id = $1 FOR UPDATE`,
		b.EventID,
	).Scan(&title, &eventDate, &location, &img, &price, &available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, repository.ErrNotFound
		}
		return nil, 0, translateDBErr(err)
	}

	if b.Quantity > available {
		return nil, 0, &repository.InsufficientSeatsError{Available: available}
	}

	b.TotalAmount = price * float64(b.Quantity)
	b.Status = domain.BookingConfirmed

	if err := db.QueryRow(ctx,
		`INSERT INTO bookings (event_id, name, email, mobile, quantity,
			total_amount, booking_code, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, booking_date`,
		b.EventID, b.Name, b.Email, b.Mobile, b.Quantity,
		b.TotalAmount, b.BookingCode, b.Status,
	).Scan(&b.ID, &b.BookingDate); err != nil {
		return nil, 0, translateDBErr(err)
	}

	var left int
	if err := db.QueryRow(ctx,
		`UPDATE events
		 SET available_seats = available_seats - $2
		 WHERE id = $1
		 RETURNING available_seats`,
		b.EventID, b.Quantity,
	).Scan(&left); err != nil {
		return nil, 0, translateDBErr(err)
	}

	return &domain.BookingWithEvent{
		Booking:       *b,
		EventTitle:    title,
		EventDate:     eventDate,
		EventLocation: location,
		EventImg:      img,
	}, left, nil
}

// Cancel flips a confirmed booking to cancelled and returns the booked
// quantity to the event's availability, in a single transaction.
//
// Returns:
//   - *domain.SeatUpdate: the event ID and its availability after the
//     quantity was returned.
//   - error: repository.ErrNotFound if the booking does not exist.
//   - error: repository.ErrAlreadyCancelled if the booking is not confirmed.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID int64) (*domain.SeatUpdate, error) {
	const op = "postgres.BookingRepo.Cancel"

	if r.db != nil {
		upd, err := r.cancelCore(ctx, r.db, bookingID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return upd, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	upd, err := r.cancelCore(ctx, tx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return upd, nil
}

func (r *BookingRepo) cancelCore(ctx context.Context, db DB, bookingID int64) (*domain.SeatUpdate, error) {
	var (
		eventID  int64
		quantity int
		status   domain.BookingStatus
	)

	err := db.QueryRow(ctx,
		`SELECT event_id, quantity, status
		 FROM bookings WHERE id = $1 FOR UPDATE`,
		bookingID,
	).Scan(&eventID, &quantity, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, translateDBErr(err)
	}

	if status != domain.BookingConfirmed {
		return nil, repository.ErrAlreadyCancelled
	}

	if _, err := db.Exec(ctx,
		`UPDATE bookings SET status = $2 WHERE id = $1`,
		bookingID, domain.BookingCancelled,
	); err != nil {
		return nil, translateDBErr(err)
	}

	var available int
	if err := db.QueryRow(ctx,
		`UPDATE events
		 SET available_seats = available_seats + $2
		 WHERE id = $1
		 RETURNING available_seats`,
		eventID, quantity,
	).Scan(&available); err != nil {
		return nil, translateDBErr(err)
	}

	return &domain.SeatUpdate{EventID: eventID, AvailableSeats: available}, nil
}

// GetByCode retrieves a booking by its public booking code (exact match),
// joined with event display fields.
//
// Returns:
//   - error: repository.ErrNotFound if no booking carries the code.
func (r *BookingRepo) GetByCode(ctx context.Context, code string) (*domain.BookingWithEvent, error) {
	const op = "postgres.BookingRepo.GetByCode"

	db := r.handle()

	var bwe domain.BookingWithEvent
	err := db.QueryRow(ctx,
		`SELECT `+bookingJoinColumns+`
		 FROM bookings b
		 JOIN events e ON e.id = b.event_id
		 WHERE b.booking_code = $1`,
		code,
	).Scan(
		&bwe.ID,
		&bwe.EventID,
		&bwe.Name,
		&bwe.Email,
		&bwe.Mobile,
		&bwe.Quantity,
		&bwe.TotalAmount,
		&bwe.BookingCode,
		&bwe.Status,
		&bwe.BookingDate,
		&bwe.EventTitle,
		&bwe.EventDate,
		&bwe.EventLocation,
		&bwe.EventImg,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &bwe, nil
}

// ListAll returns every booking joined with event display fields, newest
// first.
func (r *BookingRepo) ListAll(ctx context.Context) ([]domain.BookingWithEvent, error) {
	const op = "postgres.BookingRepo.ListAll"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+bookingJoinColumns+`
		 FROM bookings b
		 JOIN events e ON e.id = b.event_id
		 ORDER BY b.booking_date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	out := []domain.BookingWithEvent{}
	for rows.Next() {
		var bwe domain.BookingWithEvent
		if err := rows.Scan(
			&bwe.ID,
			&bwe.EventID,
			&bwe.Name,
			&bwe.Email,
			&bwe.Mobile,
			&bwe.Quantity,
			&bwe.TotalAmount,
			&bwe.BookingCode,
			&bwe.Status,
			&bwe.BookingDate,
			&bwe.EventTitle,
			&bwe.EventDate,
			&bwe.EventLocation,
			&bwe.EventImg,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, bwe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListByEvent returns the confirmed bookings of one event, newest first.
func (r *BookingRepo) ListByEvent(ctx context.Context, eventID int64) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByEvent"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, name, email, mobile, quantity, total_amount,
			booking_code, status, booking_date
		 FROM bookings
		 WHERE event_id = $1 AND status = 'confirmed'
		 ORDER BY booking_date DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	out := []domain.Booking{}
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID,
			&b.EventID,
			&b.Name,
			&b.Email,
			&b.Mobile,
			&b.Quantity,
			&b.TotalAmount,
			&b.BookingCode,
			&b.Status,
			&b.BookingDate,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
