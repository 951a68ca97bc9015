package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

const eventColumns = `id, organizer_id, name, capacity, requires_payment, price_minor, currency, starts_at, created_at`

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.OrganizerID, e.Name, e.Capacity, e.RequiresPayment, int64(e.Price), e.Currency, e.StartsAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event or model.ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// LockEvent reads the event and takes a row-level exclusive lock on it for the
// rest of the surrounding transaction.
//
// Every writer that can change an event's live reservation count goes through
// this lock first. Two concurrent reserve calls that both read "count < capacity"
// before either inserts would overbook the event; with SELECT … FOR UPDATE the
// second transaction blocks here until the first commits or rolls back, and then
// counts the committed rows.
func (s *Store) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	if txFromContext(ctx) == nil {
		return nil, errors.New("lock event: no transaction in context")
	}
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, nil
}

// DeleteEvent removes the event. Reservations must already be gone.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e     model.Event
		price int64
	)
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Capacity, &e.RequiresPayment, &price, &e.Currency, &e.StartsAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	e.Price = model.Money(price)
	return &e, nil
}
