package service

import (
	"context"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// TxRunner runs fn in a single transaction. Store methods called with the ctx
// passed to fn take part in that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventStore reads and writes events. LockEvent must be called inside WithTx.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	LockEvent(ctx context.Context, id string) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// ReservationStore persists live reservations.
type ReservationStore interface {
	InsertReservation(ctx context.Context, r *model.Reservation) error
	FindReservation(ctx context.Context, eventID, userID string) (*model.Reservation, error)
	LockReservation(ctx context.Context, id string) (*model.Reservation, error)
	CountReservations(ctx context.Context, eventID string) (int, error)
	ListReservations(ctx context.Context, eventID string) ([]model.Reservation, error)
	UpdateReservationPayment(ctx context.Context, r *model.Reservation) error
	DeleteReservation(ctx context.Context, id string) error
}

// BlockStore persists block records.
type BlockStore interface {
	IsBlocked(ctx context.Context, eventID, userID string) (bool, error)
	InsertBlock(ctx context.Context, b *model.BlockRecord) error
	DeleteBlock(ctx context.Context, eventID, userID string) error
	ListBlocks(ctx context.Context, eventID string) ([]model.BlockRecord, error)
}

// ArchiveStore persists cancellation archive entries.
type ArchiveStore interface {
	InsertArchiveEntry(ctx context.Context, a *model.ArchiveEntry) error
	GetArchiveEntry(ctx context.Context, id string) (*model.ArchiveEntry, error)
	LockArchiveEntry(ctx context.Context, id string) (*model.ArchiveEntry, error)
	UpdateArchiveRefund(ctx context.Context, a *model.ArchiveEntry) error
	ListArchiveEntries(ctx context.Context, eventID string) ([]model.ArchiveEntry, error)
}

// PaymentStore persists settled payments and webhook dedupe keys.
type PaymentStore interface {
	InsertPayment(ctx context.Context, p *model.Payment) error
	PaymentExists(ctx context.Context, paymentIntentID string) (bool, error)
	DeleteReservationPayments(ctx context.Context, reservationID string) (int64, error)
	ClaimWebhookEvent(ctx context.Context, id, eventType string) (bool, error)
}

// Store is everything the reservation core persists.
type Store interface {
	TxRunner
	EventStore
	ReservationStore
	BlockStore
	ArchiveStore
	PaymentStore
}
