// Package gateway talks to the external payment provider: checkout sessions,
// refunds and signed webhook verification.
package gateway

import (
	"context"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// Gateway is the contract the reservation core consumes from the payment provider.
// Failures are returned as *model.GatewayError.
type Gateway interface {
	// CreateCheckoutSession starts a hosted checkout and returns the URL to redirect the user to.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)

	// RefundPayment refunds amount of the given payment intent and returns the refund id.
	RefundPayment(ctx context.Context, req RefundRequest) (string, error)

	// Name returns the gateway name
	Name() string
}

// CheckoutRequest describes the payment for one pending reservation.
type CheckoutRequest struct {
	EventID       string
	EventName     string
	UserID        string
	ReservationID string
	Amount        model.Money
	Currency      string
}

// RefundRequest describes a refund of an archived payment.
type RefundRequest struct {
	PaymentIntentID string
	Amount          model.Money
	// IdempotencyKey makes provider-side retries of the same attempt safe.
	IdempotencyKey string
}

// Metadata keys attached to checkout sessions and payment intents.
const (
	MetaReservationID = "reservation_id"
	MetaEventID       = "event_id"
	MetaUserID        = "user_id"
)
