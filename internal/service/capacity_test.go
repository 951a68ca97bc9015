package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/gateway"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/testutil"
)

func TestCapacityLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.freeEvent(t, capacity(2))

	full, err := f.core.Capacity.IsFull(ctx, ev)
	require.NoError(t, err)
	assert.False(t, full)

	for _, u := range []string{"a", "b"} {
		_, err := f.core.Reservations.Reserve(ctx, u, ev.ID)
		require.NoError(t, err)
	}

	reserved, left, err := f.core.Capacity.Usage(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 2, reserved)
	require.NotNil(t, left)
	assert.Equal(t, 0, *left)

	full, err = f.core.Capacity.IsFull(ctx, ev)
	require.NoError(t, err)
	assert.True(t, full)

	err = f.core.Capacity.WithEventLock(ctx, ev.ID, func(ctx context.Context, _ *model.Event) error {
		room, err := f.core.Capacity.HasRoom(ctx, ev)
		require.NoError(t, err)
		assert.False(t, room)
		return nil
	})
	assert.NoError(t, err)
}

func TestCapacityLedger_Unlimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.freeEvent(t, nil)

	room, err := f.core.Capacity.HasRoom(ctx, ev)
	require.NoError(t, err)
	assert.True(t, room)

	full, err := f.core.Capacity.IsFull(ctx, ev)
	require.NoError(t, err)
	assert.False(t, full)
}

// lockSkippingStore reads the event without taking its lock.
type lockSkippingStore struct {
	*testutil.MemStore
}

func (s lockSkippingStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.GetEvent(ctx, id)
}

func TestCapacityLedger_ReservationWritesNeedEventLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.freeEvent(t, capacity(5))
	_, err := f.core.Reservations.Reserve(ctx, "kept", ev.ID)
	require.NoError(t, err)

	unlocked := NewCore(lockSkippingStore{f.store}, gateway.NewMockGateway(nil), Options{
		Clock:          f.clock,
		Logger:         zap.NewNop(),
		GatewayTimeout: time.Second,
	})

	_, err = unlocked.Reservations.Reserve(ctx, "new", ev.ID)
	assert.ErrorIs(t, err, testutil.ErrEventNotLocked)

	err = unlocked.Reservations.Cancel(ctx, "kept", ev.ID)
	assert.ErrorIs(t, err, testutil.ErrEventNotLocked)

	assert.Equal(t, 1, f.reservationCount(t, ev.ID))
}
