package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// CancellationArchive keeps a durable snapshot of every cancelled paid
// reservation so it can still be refunded after the live row is gone.
type CancellationArchive struct {
	store Store
	clock clock.Clock
}

// NewCancellationArchive constructs a CancellationArchive.
func NewCancellationArchive(store Store, clk clock.Clock) *CancellationArchive {
	return &CancellationArchive{store: store, clock: clk}
}

// Archive copies the payment facts of r as they stand now. Only paid reservations
// are archived; nothing changed hands for pending or failed ones.
func (a *CancellationArchive) Archive(ctx context.Context, r *model.Reservation, event *model.Event, by model.Initiator) (*model.ArchiveEntry, error) {
	if r.PaymentStatus != model.PaymentPaid {
		return nil, fmt.Errorf("%w: only paid reservations are archived", model.ErrInvalidState)
	}

	entry := &model.ArchiveEntry{
		ID:            uuid.NewString(),
		EventID:       event.ID,
		OrganizerID:   event.OrganizerID,
		UserID:        r.UserID,
		ReservationID: r.ID,
		InitiatedBy:   by,
		CancelledAt:   a.clock.Now(),
		PaymentStatus: r.PaymentStatus,
		RefundStatus:  model.RefundNone,
	}
	if r.AmountPaid != nil {
		entry.AmountPaid = *r.AmountPaid
	}
	if r.PaymentIntentID != nil {
		entry.PaymentIntentID = *r.PaymentIntentID
	}

	if err := a.store.InsertArchiveEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns one archive entry to an actor allowed to manage its event.
func (a *CancellationArchive) Get(ctx context.Context, actor model.Actor, id string) (*model.ArchiveEntry, error) {
	entry, err := a.store.GetArchiveEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.authorize(ctx, actor, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the archive entries of an event, most recent first.
func (a *CancellationArchive) List(ctx context.Context, actor model.Actor, eventID string) ([]model.ArchiveEntry, error) {
	event, err := a.store.GetEvent(ctx, eventID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	entries, err := a.store.ListArchiveEntries(ctx, eventID)
	if err != nil {
		return nil, err
	}

	switch {
	case event != nil:
		if err := requireEventAccess(actor, event); err != nil {
			return nil, err
		}
	case len(entries) == 0:
		return nil, model.ErrNotFound
	case !CanActForOrganizer(actor, entries[0].OrganizerID):
		return nil, model.ErrPermissionDenied
	}
	return entries, nil
}

// authorize checks actor against the live event, or the organiser snapshot when
// the event has since been deleted.
func (a *CancellationArchive) authorize(ctx context.Context, actor model.Actor, entry *model.ArchiveEntry) error {
	event, err := a.store.GetEvent(ctx, entry.EventID)
	switch {
	case err == nil:
		return requireEventAccess(actor, event)
	case errors.Is(err, model.ErrNotFound):
		if !CanActForOrganizer(actor, entry.OrganizerID) {
			return fmt.Errorf("%w: only the organiser or an admin can manage this cancellation", model.ErrPermissionDenied)
		}
		return nil
	default:
		return err
	}
}
