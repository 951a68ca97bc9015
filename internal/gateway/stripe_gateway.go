package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// StripeGateway implements Gateway using Stripe Checkout.
type StripeGateway struct {
	config *StripeConfig
}

// StripeConfig holds configuration for the Stripe gateway.
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// NewStripeGateway creates a Stripe gateway. The API key and an HTTP client with
// cfg.Timeout are installed on the stripe-go backend.
func NewStripeGateway(cfg *StripeConfig) (*StripeGateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	stripe.Key = cfg.SecretKey
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}))

	return &StripeGateway{config: cfg}, nil
}

// CreateCheckoutSession creates a Checkout Session for a single ticket. The
// reservation id travels in both the session and payment intent metadata so
// every webhook type can be traced back to it.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	meta := map[string]string{
		MetaReservationID: req.ReservationID,
		MetaEventID:       req.EventID,
		MetaUserID:        req.UserID,
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.config.SuccessURL),
		CancelURL:         stripe.String(g.config.CancelURL),
		ClientReferenceID: stripe.String(req.ReservationID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.Amount.MinorUnits()),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.EventName),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: meta,
		},
		Metadata: meta,
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", classify("checkout", err)
	}
	return sess.URL, nil
}

// RefundPayment refunds a payment intent.
func (g *StripeGateway) RefundPayment(ctx context.Context, req RefundRequest) (string, error) {
	if req.PaymentIntentID == "" {
		return "", &model.GatewayError{Op: "refund", Err: errors.New("payment intent id is required")}
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(req.Amount.MinorUnits()),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := refund.New(params)
	if err != nil {
		return "", classify("refund", err)
	}
	if r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled {
		return "", &model.GatewayError{Op: "refund", Code: string(r.Status), Err: fmt.Errorf("refund %s ended %s", r.ID, r.Status)}
	}
	return r.ID, nil
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

// classify turns a stripe-go error into a GatewayError, separating explicit
// declines (a *stripe.Error from the API) from timeouts and network failures.
func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := string(stripeErr.Code)
		if code == "" {
			code = string(stripeErr.Type)
		}
		return &model.GatewayError{Op: op, Code: code, Err: err}
	}

	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &model.GatewayError{Op: op, Timeout: timeout, Err: err}
}
