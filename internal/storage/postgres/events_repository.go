package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/allez-events/server/internal/domain/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	pool *pgxpool.Pool
}

const eventColumns = `id, name, categories, address, city, state, country, zip,
       latitude, longitude, price, total_seats, booked_seats, min_age,
       description, event_date, start_time, end_time, host_id, cohost_ids,
       attendee_ids, stripe_product_id, payment_url, image_key,
       created_at, updated_at`

func (r *EventRepository) Insert(ctx context.Context, event *events.Event) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO events (id, name, categories, address, city, state, country, zip,
                    latitude, longitude, price, total_seats, booked_seats, min_age,
                    description, event_date, start_time, end_time, host_id,
                    cohost_ids, attendee_ids, stripe_product_id, payment_url,
                    image_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
`,
		event.ID, event.Name, event.Categories,
		event.Venue.Address, event.Venue.City, event.Venue.State, event.Venue.Country, event.Venue.Zip,
		event.Venue.Latitude, event.Venue.Longitude,
		event.Price, event.TotalSeats, event.BookedSeats, event.MinAge,
		event.Description, event.EventDate, event.StartTime, event.EndTime,
		event.HostID, event.CohostIDs, event.AttendeeIDs,
		event.StripeProductID, event.PaymentURL, event.ImageKey,
		event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) GetByIDs(ctx context.Context, ids []string) ([]events.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get events by ids: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *EventRepository) List(ctx context.Context) ([]events.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *EventRepository) ListByHost(ctx context.Context, hostID string) ([]events.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE host_id = $1 ORDER BY event_date ASC`, hostID)
	if err != nil {
		return nil, fmt.Errorf("list events by host: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *EventRepository) ExistsByNameCity(ctx context.Context, name, city string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM events WHERE lower(name) = lower($1) AND lower(city) = lower($2))
`, name, city).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event name and city: %w", err)
	}
	return exists, nil
}

func (r *EventRepository) Update(ctx context.Context, event *events.Event) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET name = $2, categories = $3, address = $4, city = $5, state = $6,
       country = $7, zip = $8, latitude = $9, longitude = $10, price = $11,
       total_seats = $12, booked_seats = $13, min_age = $14, description = $15,
       event_date = $16, start_time = $17, end_time = $18, payment_url = $19,
       image_key = $20, updated_at = $21
 WHERE id = $1
`,
		event.ID, event.Name, event.Categories,
		event.Venue.Address, event.Venue.City, event.Venue.State, event.Venue.Country, event.Venue.Zip,
		event.Venue.Latitude, event.Venue.Longitude,
		event.Price, event.TotalSeats, event.BookedSeats, event.MinAge,
		event.Description, event.EventDate, event.StartTime, event.EndTime,
		event.PaymentURL, event.ImageKey, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// SetPaymentURL stores a regenerated payment link. An event deleted
// since the repair was scheduled is not an error; deletion already
// tears down the provider state.
func (r *EventRepository) SetPaymentURL(ctx context.Context, eventID, url string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE events SET payment_url = $2, updated_at = now() WHERE id = $1
`, eventID, url)
	if err != nil {
		return fmt.Errorf("set payment url: %w", err)
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) DeleteByHost(ctx context.Context, hostID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE host_id = $1`, hostID)
	if err != nil {
		return fmt.Errorf("delete events by host: %w", err)
	}
	return nil
}

// AddCohost moves userID out of the attendee list and into the cohost
// list in one statement, so a concurrent registration cannot leave the
// id in both.
func (r *EventRepository) AddCohost(ctx context.Context, eventID, userID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET attendee_ids = array_remove(attendee_ids, $2),
       cohost_ids = CASE WHEN $2 = ANY(cohost_ids) THEN cohost_ids
                         ELSE array_append(cohost_ids, $2) END,
       updated_at = now()
 WHERE id = $1
`, eventID, userID)
	if err != nil {
		return fmt.Errorf("add cohost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) RemoveCohost(ctx context.Context, eventID, userID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET cohost_ids = array_remove(cohost_ids, $2), updated_at = now()
 WHERE id = $1
`, eventID, userID)
	if err != nil {
		return fmt.Errorf("remove cohost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// AddAttendee appends userID unless they are already attending or
// cohosting. A zero row count on an existing event means the guard
// rejected a duplicate registration.
func (r *EventRepository) AddAttendee(ctx context.Context, eventID, userID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET attendee_ids = array_append(attendee_ids, $2), updated_at = now()
 WHERE id = $1
   AND NOT ($2 = ANY(attendee_ids))
   AND NOT ($2 = ANY(cohost_ids))
`, eventID, userID)
	if err != nil {
		return fmt.Errorf("add attendee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
			return fmt.Errorf("add attendee: %w", err)
		}
		if !exists {
			return events.ErrNotFound
		}
		return events.ErrAlreadyRegistered
	}
	return nil
}

func (r *EventRepository) RemoveAttendee(ctx context.Context, eventID, userID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET attendee_ids = array_remove(attendee_ids, $2), updated_at = now()
 WHERE id = $1
`, eventID, userID)
	if err != nil {
		return fmt.Errorf("remove attendee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var event events.Event
	err := row.Scan(
		&event.ID, &event.Name, &event.Categories,
		&event.Venue.Address, &event.Venue.City, &event.Venue.State, &event.Venue.Country, &event.Venue.Zip,
		&event.Venue.Latitude, &event.Venue.Longitude,
		&event.Price, &event.TotalSeats, &event.BookedSeats, &event.MinAge,
		&event.Description, &event.EventDate, &event.StartTime, &event.EndTime,
		&event.HostID, &event.CohostIDs, &event.AttendeeIDs,
		&event.StripeProductID, &event.PaymentURL, &event.ImageKey,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if event.CohostIDs == nil {
		event.CohostIDs = []string{}
	}
	if event.AttendeeIDs == nil {
		event.AttendeeIDs = []string{}
	}
	return &event, nil
}

func collectEvents(rows pgx.Rows) ([]events.Event, error) {
	items := []events.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}
