package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// InsertPayment records a settled payment. A second record for the same
// payment intent returns ErrDuplicate.
func (s *Store) InsertPayment(ctx context.Context, p *model.Payment) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO payments (id, reservation_id, payment_intent_id, amount_minor, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.ReservationID, p.PaymentIntentID, int64(p.Amount), string(p.Status), p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// PaymentExists reports whether a payment was already recorded for the intent.
func (s *Store) PaymentExists(ctx context.Context, paymentIntentID string) (bool, error) {
	var exists bool
	if err := s.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE payment_intent_id = $1)`, paymentIntentID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payment: %w", err)
	}
	return exists, nil
}

// DeleteReservationPayments removes the settled payments of a reservation.
func (s *Store) DeleteReservationPayments(ctx context.Context, reservationID string) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM payments WHERE reservation_id = $1`, reservationID)
	if err != nil {
		return 0, fmt.Errorf("delete payments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClaimWebhookEvent records a gateway event id. It returns false when the id was
// already claimed, i.e. the delivery is a duplicate.
func (s *Store) ClaimWebhookEvent(ctx context.Context, id, eventType string) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx,
		`INSERT INTO webhook_events (id, type) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		id, eventType,
	)
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
