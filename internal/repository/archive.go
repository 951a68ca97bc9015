package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

const archiveColumns = `id, event_id, organizer_id, user_id, reservation_id, initiated_by, cancelled_at,
	payment_status, amount_paid_minor, payment_intent_id,
	refund_status, refund_id, refunded_by, refunded_at, refund_attempts, refund_error`

// InsertArchiveEntry stores a new cancellation snapshot.
func (s *Store) InsertArchiveEntry(ctx context.Context, a *model.ArchiveEntry) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO cancellation_archive (`+archiveColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.EventID, a.OrganizerID, a.UserID, a.ReservationID, string(a.InitiatedBy), a.CancelledAt,
		string(a.PaymentStatus), int64(a.AmountPaid), a.PaymentIntentID,
		string(a.RefundStatus), a.RefundID, a.RefundedBy, a.RefundedAt, a.RefundAttempts, a.RefundError,
	)
	if err != nil {
		return fmt.Errorf("insert archive entry: %w", err)
	}
	return nil
}

// GetArchiveEntry returns an archive entry or model.ErrNotFound.
func (s *Store) GetArchiveEntry(ctx context.Context, id string) (*model.ArchiveEntry, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+archiveColumns+` FROM cancellation_archive WHERE id = $1`, id)
	a, err := scanArchiveEntry(row)
	if err != nil {
		return nil, fmt.Errorf("get archive entry: %w", err)
	}
	return a, nil
}

// LockArchiveEntry reads an archive entry and locks its row.
func (s *Store) LockArchiveEntry(ctx context.Context, id string) (*model.ArchiveEntry, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+archiveColumns+` FROM cancellation_archive WHERE id = $1 FOR UPDATE`, id)
	a, err := scanArchiveEntry(row)
	if err != nil {
		return nil, fmt.Errorf("lock archive entry: %w", err)
	}
	return a, nil
}

// UpdateArchiveRefund persists the refund-tracking fields; the snapshot fields never change.
func (s *Store) UpdateArchiveRefund(ctx context.Context, a *model.ArchiveEntry) error {
	tag, err := s.q(ctx).Exec(ctx,
		`UPDATE cancellation_archive
		 SET refund_status = $2, refund_id = $3, refunded_by = $4, refunded_at = $5,
		     refund_attempts = $6, refund_error = $7
		 WHERE id = $1`,
		a.ID, string(a.RefundStatus), a.RefundID, a.RefundedBy, a.RefundedAt, a.RefundAttempts, a.RefundError,
	)
	if err != nil {
		return fmt.Errorf("update archive refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListArchiveEntries returns the archive entries of an event, most recent first.
func (s *Store) ListArchiveEntries(ctx context.Context, eventID string) ([]model.ArchiveEntry, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+archiveColumns+`
		 FROM cancellation_archive
		 WHERE event_id = $1
		 ORDER BY cancelled_at DESC`,
		eventID,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("list archive entries: %w", err)
	}
	defer rows.Close()

	var out []model.ArchiveEntry
	for rows.Next() {
		a, err := scanArchiveEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive entry: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanArchiveEntry(row scanner) (*model.ArchiveEntry, error) {
	var (
		a                                     model.ArchiveEntry
		initiatedBy, paymentStatus, refundSts string
		amount                                int64
	)
	err := row.Scan(
		&a.ID, &a.EventID, &a.OrganizerID, &a.UserID, &a.ReservationID, &initiatedBy, &a.CancelledAt,
		&paymentStatus, &amount, &a.PaymentIntentID,
		&refundSts, &a.RefundID, &a.RefundedBy, &a.RefundedAt, &a.RefundAttempts, &a.RefundError,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	a.InitiatedBy = model.Initiator(initiatedBy)
	a.PaymentStatus = model.PaymentStatus(paymentStatus)
	a.RefundStatus = model.RefundStatus(refundSts)
	a.AmountPaid = model.Money(amount)
	return &a, nil
}
