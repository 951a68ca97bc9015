package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/gateway"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/testutil"
)

var (
	testNow   = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	organiser = model.Actor{ID: "organiser-1"}
	admin     = model.Actor{ID: "admin-1", Capabilities: []model.Capability{model.CapabilityAdmin}}
	stranger  = model.Actor{ID: "stranger-1"}
)

type fixture struct {
	core  *Core
	store *testutil.MemStore
	gw    *gateway.MockGateway
	clock *clock.Manual
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	return newFixtureWithGateway(t, gateway.NewMockGateway(nil), opts...)
}

func newFixtureWithGateway(t *testing.T, gw gateway.Gateway, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{store: testutil.NewMemStore(), clock: clock.NewManual(testNow)}
	if m, ok := gw.(*gateway.MockGateway); ok {
		f.gw = m
	}
	o := Options{Clock: f.clock, Logger: zap.NewNop(), GatewayTimeout: time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	f.core = NewCore(f.store, gw, o)
	return f
}

func (f *fixture) freeEvent(t *testing.T, capacity *int) *model.Event {
	t.Helper()
	ev, err := f.core.Events.CreateEvent(context.Background(), organiser, model.CreateEventRequest{
		Name:     "Meetup",
		Capacity: capacity,
		StartsAt: testNow.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) paidEvent(t *testing.T, capacity *int, price string) *model.Event {
	t.Helper()
	ev, err := f.core.Events.CreateEvent(context.Background(), organiser, model.CreateEventRequest{
		Name:            "Workshop",
		Capacity:        capacity,
		RequiresPayment: true,
		Price:           price,
		Currency:        "USD",
		StartsAt:        testNow.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return ev
}

// paidReservation reserves and settles a payment for userID.
func (f *fixture) paidReservation(t *testing.T, ev *model.Event, userID, intentID string) *model.Reservation {
	t.Helper()
	ctx := context.Background()
	res, err := f.core.Reservations.Reserve(ctx, userID, ev.ID)
	require.NoError(t, err)
	require.NoError(t, f.core.Payments.ConfirmPayment(ctx, res.ID, intentID, ev.Price))
	return res
}

func (f *fixture) reservationCount(t *testing.T, eventID string) int {
	t.Helper()
	n, err := f.store.CountReservations(context.Background(), eventID)
	require.NoError(t, err)
	return n
}

func capacity(n int) *int { return &n }

// mockGateway is a testify mock of gateway.Gateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) RefundPayment(ctx context.Context, req gateway.RefundRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Name() string {
	return "mock"
}
