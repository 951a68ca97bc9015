package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// WebhookVerifier authenticates Stripe webhook deliveries and extracts the
// fields the payment ledger needs.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier returns a verifier for the endpoint signing secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Parse verifies the Stripe-Signature header against payload and decodes the event.
// Any verification failure is model.ErrSignatureInvalid; nothing in the payload is
// trusted before the signature checks out.
func (v *WebhookVerifier) Parse(payload []byte, signatureHeader string) (*model.WebhookEvent, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: no webhook secret configured", model.ErrSignatureInvalid)
	}
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: missing signature header", model.ErrSignatureInvalid)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSignatureInvalid, err)
	}

	out := &model.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case model.WebhookCheckoutCompleted,
		model.WebhookCheckoutExpired,
		model.WebhookAsyncPaymentSucceeded,
		model.WebhookAsyncPaymentFailed:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", model.ErrInvalidInput, err)
		}
		out.ReservationID = sess.Metadata[MetaReservationID]
		if out.ReservationID == "" {
			out.ReservationID = sess.ClientReferenceID
		}
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}
		out.AmountTotal = model.Money(sess.AmountTotal)
		out.Paid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid

	case model.WebhookPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: decode payment intent: %v", model.ErrInvalidInput, err)
		}
		out.ReservationID = pi.Metadata[MetaReservationID]
		out.PaymentIntentID = pi.ID
		out.AmountTotal = model.Money(pi.Amount)
	}
	return out, nil
}
