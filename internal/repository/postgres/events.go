package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventix/eventix/internal/domain"
	"github.com/eventix/eventix/internal/repository"
)

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const eventColumns = `id, title, description, location, date,
	total_seats, available_seats, price, img, created_at`

// List returns events matching the filter, ordered by date ascending.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - f: optional filters; zero values are skipped.
//
// Returns:
//   - []domain.Event: matching events (empty slice when none match).
func (r *EventRepo) List(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	const op = "postgres.EventRepo.List"

	db := r.handle()

	var sb strings.Builder
	sb.WriteString(`SELECT ` + eventColumns + ` FROM events WHERE true`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		sb.WriteString(` AND (title ILIKE ` + p + ` OR description ILIKE ` + p + `)`)
	}

	if f.Location != "" {
		sb.WriteString(` AND location ILIKE ` + arg("%"+f.Location+"%"))
	}

	if f.Date != nil {
		sb.WriteString(` AND date::date = ` + arg(*f.Date) + `::date`)
	}

	if f.From != nil {
		sb.WriteString(` AND date >= ` + arg(*f.From))
	}

	if f.To != nil {
		sb.WriteString(` AND date <= ` + arg(*f.To))
	}

	sb.WriteString(` ORDER BY date ASC`)

	rows, err := db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	out := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(
			&e.ID,
			&e.Title,
			&e.Description,
			&e.Location,
			&e.Date,
			&e.TotalSeats,
			&e.AvailableSeats,
			&e.Price,
			&e.Img,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Get retrieves an event by its ID.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) Get(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.EventRepo.Get"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	).Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Location,
		&e.Date,
		&e.TotalSeats,
		&e.AvailableSeats,
		&e.Price,
		&e.Img,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &e, nil
}

// GetForUpdate retrieves an event by its ID holding a row-level write lock
// for the rest of the surrounding transaction. Callers must pass a
// transaction handle via With.
func (r *EventRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.EventRepo.GetForUpdate"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Location,
		&e.Date,
		&e.TotalSeats,
		&e.AvailableSeats,
		&e.Price,
		&e.Img,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &e, nil
}

// Create inserts an event and returns its generated ID.
func (r *EventRepo) Create(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "postgres.EventRepo.Create"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO events (title, description, location, date,
			total_seats, available_seats, price, img)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		e.Title, e.Description, e.Location, e.Date,
		e.TotalSeats, e.AvailableSeats, e.Price, e.Img,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

// Update rewrites all mutable columns of an event.
//
// Returns:
//   - error: repository.ErrNotFound if the event does not exist.
func (r *EventRepo) Update(ctx context.Context, e *domain.Event) error {
	const op = "postgres.EventRepo.Update"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, location = $4, date = $5,
			 total_seats = $6, available_seats = $7, price = $8, img = $9
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Location, e.Date,
		e.TotalSeats, e.AvailableSeats, e.Price, e.Img,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// Delete removes an event.
//
// Returns:
//   - error: repository.ErrNotFound if the event does not exist.
func (r *EventRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.EventRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// ConfirmedQuantity returns the sum of quantities of confirmed bookings
// referencing the event.
func (r *EventRepo) ConfirmedQuantity(ctx context.Context, eventID int64) (int, error) {
	const op = "postgres.EventRepo.ConfirmedQuantity"

	db := r.handle()

	var qty int
	err := db.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0)
		 FROM bookings
		 WHERE event_id = $1 AND status = 'confirmed'`,
		eventID,
	).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return qty, nil
}
