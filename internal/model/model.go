// Package model defines the core domain types for the reservation and payment lifecycle.
package model

import (
	"fmt"
	"time"
)

// PaymentStatus is the payment state of a single reservation.
type PaymentStatus string

const (
	PaymentNone    PaymentStatus = "none"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Valid reports whether s is one of the known payment states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentNone, PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// RefundStatus tracks money returned for an archived cancellation.
type RefundStatus string

const (
	RefundNone     RefundStatus = "none"
	RefundPending  RefundStatus = "pending"
	RefundRefunded RefundStatus = "refunded"
	RefundFailed   RefundStatus = "failed"
)

// Initiator records who cancelled a reservation.
type Initiator string

const (
	InitiatedBySelf      Initiator = "self"
	InitiatedByOrganiser Initiator = "organiser"
)

// Event is the subset of an event this service needs to enforce capacity and payment rules.
type Event struct {
	ID              string    `json:"id"`
	OrganizerID     string    `json:"organizer_id"`
	Name            string    `json:"name"`
	Capacity        *int      `json:"capacity,omitempty"`
	RequiresPayment bool      `json:"requires_payment"`
	Price           Money     `json:"price"`
	Currency        string    `json:"currency"`
	StartsAt        time.Time `json:"starts_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Unlimited returns true when the event has no capacity bound.
func (e *Event) Unlimited() bool {
	return e.Capacity == nil
}

// HasStarted reports whether the event start time is at or before now.
func (e *Event) HasStarted(now time.Time) bool {
	return !e.StartsAt.After(now)
}

// Validate checks the invariants an event must hold before it is stored.
func (e *Event) Validate() error {
	if e.Capacity != nil && *e.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be a positive integer", ErrInvalidInput)
	}
	if e.RequiresPayment && e.Price <= 0 {
		return fmt.Errorf("%w: paid events need a price greater than zero", ErrInvalidInput)
	}
	if !e.RequiresPayment && e.Price != 0 {
		return fmt.Errorf("%w: free events cannot carry a price", ErrInvalidInput)
	}
	return nil
}

// Reservation is a user's claim on one of an event's slots.
type Reservation struct {
	ID              string        `json:"id"`
	EventID         string        `json:"event_id"`
	UserID          string        `json:"user_id"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentIntentID *string       `json:"payment_intent_id,omitempty"`
	AmountPaid      *Money        `json:"amount_paid,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// BlockRecord bars a user from reserving a specific event.
type BlockRecord struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	BlockedBy string    `json:"blocked_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchiveEntry is the immutable snapshot of a cancelled paid reservation.
// Only the refund fields change after creation.
type ArchiveEntry struct {
	ID              string        `json:"id"`
	EventID         string        `json:"event_id"`
	OrganizerID     string        `json:"organizer_id"`
	UserID          string        `json:"user_id"`
	ReservationID   string        `json:"reservation_id"`
	InitiatedBy     Initiator     `json:"initiated_by"`
	CancelledAt     time.Time     `json:"cancelled_at"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	AmountPaid      Money         `json:"amount_paid"`
	PaymentIntentID string        `json:"payment_intent_id"`

	RefundStatus   RefundStatus `json:"refund_status"`
	RefundID       *string      `json:"refund_id,omitempty"`
	RefundedBy     *string      `json:"refunded_by,omitempty"`
	RefundedAt     *time.Time   `json:"refunded_at,omitempty"`
	RefundAttempts int          `json:"refund_attempts"`
	RefundError    *string      `json:"refund_error,omitempty"`
}

// Refundable reports whether a refund may be started for the entry.
func (a *ArchiveEntry) Refundable() error {
	switch {
	case a.PaymentStatus != PaymentPaid:
		return fmt.Errorf("%w: reservation was never paid", ErrInvalidState)
	case a.RefundStatus == RefundRefunded:
		return fmt.Errorf("%w: already refunded", ErrInvalidState)
	case a.RefundStatus == RefundPending:
		return fmt.Errorf("%w: refund already in progress", ErrInvalidState)
	}
	return nil
}

// Payment is a settled-payment ledger entry.
type Payment struct {
	ID              string        `json:"id"`
	ReservationID   string        `json:"reservation_id"`
	PaymentIntentID string        `json:"payment_intent_id"`
	Amount          Money         `json:"amount"`
	Status          PaymentStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// WebhookEvent is a verified gateway notification, reduced to the fields the ledger uses.
type WebhookEvent struct {
	ID              string
	Type            string
	ReservationID   string
	PaymentIntentID string
	AmountTotal     Money
	// Paid is false for checkout sessions completed with a delayed payment method.
	Paid bool
}

// Gateway webhook event types the payment ledger reacts to.
const (
	WebhookCheckoutCompleted     = "checkout.session.completed"
	WebhookCheckoutExpired       = "checkout.session.expired"
	WebhookAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	WebhookAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	WebhookPaymentFailed         = "payment_intent.payment_failed"
)

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name            string    `json:"name"`
	Capacity        *int      `json:"capacity"`
	RequiresPayment bool      `json:"requires_payment"`
	Price           string    `json:"price"`
	Currency        string    `json:"currency"`
	StartsAt        time.Time `json:"starts_at"`
}

// EventDetails is an event plus its live reservation count.
type EventDetails struct {
	Event
	Reserved  int  `json:"reserved"`
	Remaining *int `json:"remaining,omitempty"`
}

// ReserveResponse is returned from a reservation request. CheckoutURL is set for paid events.
type ReserveResponse struct {
	Reservation *Reservation `json:"reservation"`
	CheckoutURL string       `json:"checkout_url,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
