package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

const reservationColumns = `id, event_id, user_id, payment_status, payment_intent_id, amount_paid_minor, created_at`

// InsertReservation creates the reservation row. A second live reservation for the
// same (event, user) returns model.ErrAlreadyReserved.
func (s *Store) InsertReservation(ctx context.Context, r *model.Reservation) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO reservations (`+reservationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.EventID, r.UserID, string(r.PaymentStatus), r.PaymentIntentID, moneyArg(r.AmountPaid), r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyReserved
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// FindReservation returns the user's live reservation for the event or model.ErrNotFound.
func (s *Store) FindReservation(ctx context.Context, eventID, userID string) (*model.Reservation, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE event_id = $1 AND user_id = $2`,
		eventID, userID)
	r, err := scanReservation(row)
	if err != nil {
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return r, nil
}

// LockReservation reads a reservation by id and locks its row.
func (s *Store) LockReservation(ctx context.Context, id string) (*model.Reservation, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
	r, err := scanReservation(row)
	if err != nil {
		return nil, fmt.Errorf("lock reservation: %w", err)
	}
	return r, nil
}

// CountReservations returns the live reservation count for an event.
func (s *Store) CountReservations(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := s.q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE event_id = $1`, eventID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}

// ListReservations returns all live reservations for an event, oldest first.
func (s *Store) ListReservations(ctx context.Context, eventID string) ([]model.Reservation, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateReservationPayment persists the payment fields of r.
func (s *Store) UpdateReservationPayment(ctx context.Context, r *model.Reservation) error {
	tag, err := s.q(ctx).Exec(ctx,
		`UPDATE reservations
		 SET payment_status = $2, payment_intent_id = $3, amount_paid_minor = $4
		 WHERE id = $1`,
		r.ID, string(r.PaymentStatus), r.PaymentIntentID, moneyArg(r.AmountPaid),
	)
	if err != nil {
		return fmt.Errorf("update reservation payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeleteReservation removes a live reservation, releasing its capacity slot.
func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanReservation(row scanner) (*model.Reservation, error) {
	var (
		r      model.Reservation
		status string
		amount *int64
	)
	err := row.Scan(&r.ID, &r.EventID, &r.UserID, &status, &r.PaymentIntentID, &amount, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	r.PaymentStatus = model.PaymentStatus(status)
	if amount != nil {
		m := model.Money(*amount)
		r.AmountPaid = &m
	}
	return &r, nil
}

func moneyArg(m *model.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}
