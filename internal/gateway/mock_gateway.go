package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// MockGateway implements Gateway in-process for local development and tests.
type MockGateway struct {
	config *MockConfig

	mu       sync.Mutex
	sessions []CheckoutRequest
	refunded []RefundRequest
	refunds  map[string]string // idempotency key -> refund id
}

// MockConfig holds configuration for the mock gateway.
type MockConfig struct {
	// CheckoutBaseURL prefixes the returned checkout URLs.
	CheckoutBaseURL string

	// Delay is the simulated processing time of every call.
	Delay time.Duration

	// FailRefunds makes every refund fail with a decline.
	FailRefunds bool

	// FailCheckout makes every checkout session creation fail.
	FailCheckout bool
}

// NewMockGateway creates a new mock gateway.
func NewMockGateway(cfg *MockConfig) *MockGateway {
	if cfg == nil {
		cfg = &MockConfig{}
	}
	if cfg.CheckoutBaseURL == "" {
		cfg.CheckoutBaseURL = "https://checkout.mock.local/session/"
	}
	return &MockGateway{config: cfg, refunds: make(map[string]string)}
}

// CreateCheckoutSession records the request and returns a fake hosted-checkout URL.
func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if err := g.wait(ctx, "checkout"); err != nil {
		return "", err
	}
	if g.config.FailCheckout {
		return "", &model.GatewayError{Op: "checkout", Code: "processing_error", Err: errors.New("mock checkout failure")}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, req)
	return g.config.CheckoutBaseURL + req.ReservationID, nil
}

// RefundPayment returns a refund id. Repeating an idempotency key returns the same id.
func (g *MockGateway) RefundPayment(ctx context.Context, req RefundRequest) (string, error) {
	if err := g.wait(ctx, "refund"); err != nil {
		return "", err
	}
	if g.config.FailRefunds {
		return "", &model.GatewayError{Op: "refund", Code: "card_declined", Err: errors.New("mock refund declined")}
	}
	if req.PaymentIntentID == "" {
		return "", &model.GatewayError{Op: "refund", Err: errors.New("payment intent id is required")}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded = append(g.refunded, req)
	if id, ok := g.refunds[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return id, nil
	}
	id := "re_mock_" + uuid.NewString()
	if req.IdempotencyKey != "" {
		g.refunds[req.IdempotencyKey] = id
	}
	return id, nil
}

// Sessions returns the checkout requests seen so far.
func (g *MockGateway) Sessions() []CheckoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]CheckoutRequest(nil), g.sessions...)
}

// Refunds returns the refund requests that reached the gateway.
func (g *MockGateway) Refunds() []RefundRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RefundRequest(nil), g.refunded...)
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

func (g *MockGateway) wait(ctx context.Context, op string) error {
	if g.config.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return &model.GatewayError{Op: op, Timeout: true, Err: fmt.Errorf("mock %s: %w", op, ctx.Err())}
	case <-time.After(g.config.Delay):
		return nil
	}
}
