package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

func TestCreateEvent(t *testing.T) {
	starts := testNow.Add(24 * time.Hour)

	tests := []struct {
		name    string
		actor   model.Actor
		req     model.CreateEventRequest
		wantErr error
	}{
		{
			name:  "free unlimited",
			actor: organiser,
			req:   model.CreateEventRequest{Name: "Meetup", StartsAt: starts},
		},
		{
			name:  "paid",
			actor: organiser,
			req:   model.CreateEventRequest{Name: "Workshop", RequiresPayment: true, Price: "12.50", StartsAt: starts},
		},
		{
			name:    "anonymous",
			req:     model.CreateEventRequest{Name: "Meetup", StartsAt: starts},
			wantErr: model.ErrPermissionDenied,
		},
		{
			name:    "missing name",
			actor:   organiser,
			req:     model.CreateEventRequest{Name: "  ", StartsAt: starts},
			wantErr: model.ErrInvalidInput,
		},
		{
			name:    "missing start",
			actor:   organiser,
			req:     model.CreateEventRequest{Name: "Meetup"},
			wantErr: model.ErrInvalidInput,
		},
		{
			name:    "zero capacity",
			actor:   organiser,
			req:     model.CreateEventRequest{Name: "Meetup", Capacity: capacity(0), StartsAt: starts},
			wantErr: model.ErrInvalidInput,
		},
		{
			name:    "paid without price",
			actor:   organiser,
			req:     model.CreateEventRequest{Name: "Workshop", RequiresPayment: true, StartsAt: starts},
			wantErr: model.ErrInvalidInput,
		},
		{
			name:    "free with price",
			actor:   organiser,
			req:     model.CreateEventRequest{Name: "Meetup", Price: "5.00", StartsAt: starts},
			wantErr: model.ErrInvalidInput,
		},
		{
			name:    "malformed price",
			actor:   organiser,
			req:     model.CreateEventRequest{Name: "Workshop", RequiresPayment: true, Price: "ten", StartsAt: starts},
			wantErr: model.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ev, err := f.core.Events.CreateEvent(context.Background(), tt.actor, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ev)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, ev.ID)
			assert.Equal(t, tt.actor.ID, ev.OrganizerID)
			assert.Equal(t, "usd", ev.Currency)
			assert.Equal(t, testNow, ev.CreatedAt)
		})
	}
}

func TestGetEvent_ReportsUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.freeEvent(t, capacity(3))
	_, err := f.core.Reservations.Reserve(ctx, "alice", ev.ID)
	require.NoError(t, err)

	details, err := f.core.Events.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, details.Reserved)
	require.NotNil(t, details.Remaining)
	assert.Equal(t, 2, *details.Remaining)

	unlimited := f.freeEvent(t, nil)
	details, err = f.core.Events.GetEvent(ctx, unlimited.ID)
	require.NoError(t, err)
	assert.Nil(t, details.Remaining)

	_, err = f.core.Events.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.freeEvent(t, nil)
	for _, u := range []string{"alice", "bob"} {
		_, err := f.core.Reservations.Reserve(ctx, u, ev.ID)
		require.NoError(t, err)
	}

	list, err := f.core.Events.ListReservations(ctx, organiser, ev.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.core.Events.ListReservations(ctx, stranger, ev.ID)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("archives paid reservations and removes everything", func(t *testing.T) {
		f := newFixture(t)
		ev := f.paidEvent(t, nil, "30.00")
		f.paidReservation(t, ev, "alice", "pi_a")
		_, err := f.core.Reservations.Reserve(ctx, "bob", ev.ID) // pending
		require.NoError(t, err)
		require.NoError(t, f.core.Blocks.Block(ctx, organiser, ev.ID, "mallory"))

		require.NoError(t, f.core.Events.DeleteEvent(ctx, organiser, ev.ID))

		_, err = f.store.GetEvent(ctx, ev.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.Equal(t, 0, f.reservationCount(t, ev.ID))
		assert.Empty(t, f.store.Payments())

		entries := f.store.ArchiveEntries()
		require.Len(t, entries, 1)
		assert.Equal(t, "alice", entries[0].UserID)
		assert.Equal(t, model.InitiatedByOrganiser, entries[0].InitiatedBy)
		assert.Equal(t, organiser.ID, entries[0].OrganizerID)
	})

	t.Run("started event", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		f.clock.Advance(48 * time.Hour)

		assert.ErrorIs(t, f.core.Events.DeleteEvent(ctx, organiser, ev.ID), model.ErrInvalidState)
		_, err := f.store.GetEvent(ctx, ev.ID)
		assert.NoError(t, err)
	})

	t.Run("stranger is denied", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		assert.ErrorIs(t, f.core.Events.DeleteEvent(ctx, stranger, ev.ID), model.ErrPermissionDenied)
	})

	t.Run("admin may delete", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		assert.NoError(t, f.core.Events.DeleteEvent(ctx, admin, ev.ID))
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.core.Events.DeleteEvent(ctx, organiser, "missing"), model.ErrNotFound)
	})
}
