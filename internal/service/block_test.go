package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

func TestBlock_CancelsAndArchivesPaidReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.paidEvent(t, capacity(3), "25.00")
	res := f.paidReservation(t, ev, "B", "pi_b")

	require.NoError(t, f.core.Blocks.Block(ctx, organiser, ev.ID, "B"))

	assert.Equal(t, 0, f.reservationCount(t, ev.ID))
	entries := f.store.ArchiveEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, res.ID, entries[0].ReservationID)
	assert.Equal(t, model.InitiatedByOrganiser, entries[0].InitiatedBy)
	assert.Equal(t, model.Money(2500), entries[0].AmountPaid)

	_, err := f.core.Reservations.Reserve(ctx, "B", ev.ID)
	assert.ErrorIs(t, err, model.ErrBlocked)
}

func TestBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid reservation is removed without archive", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		_, err := f.core.Reservations.Reserve(ctx, "B", ev.ID)
		require.NoError(t, err)

		require.NoError(t, f.core.Blocks.Block(ctx, organiser, ev.ID, "B"))
		assert.Equal(t, 0, f.reservationCount(t, ev.ID))
		assert.Empty(t, f.store.ArchiveEntries())
	})

	t.Run("user without reservation", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)

		require.NoError(t, f.core.Blocks.Block(ctx, admin, ev.ID, "B"))
		blocks, err := f.core.Blocks.ListBlocks(ctx, organiser, ev.ID)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, "B", blocks[0].UserID)
		assert.Equal(t, admin.ID, blocks[0].BlockedBy)
		assert.Equal(t, testNow, blocks[0].CreatedAt)
	})

	t.Run("already blocked", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		require.NoError(t, f.core.Blocks.Block(ctx, organiser, ev.ID, "B"))
		assert.ErrorIs(t, f.core.Blocks.Block(ctx, organiser, ev.ID, "B"), model.ErrAlreadyBlocked)
	})

	t.Run("stranger is denied", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		_, err := f.core.Reservations.Reserve(ctx, "B", ev.ID)
		require.NoError(t, err)

		assert.ErrorIs(t, f.core.Blocks.Block(ctx, stranger, ev.ID, "B"), model.ErrPermissionDenied)
		assert.Equal(t, 1, f.reservationCount(t, ev.ID))
	})

	t.Run("cannot block yourself by default", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		assert.ErrorIs(t, f.core.Blocks.Block(ctx, organiser, ev.ID, organiser.ID), model.ErrInvalidState)
	})

	t.Run("self block when allowed", func(t *testing.T) {
		f := newFixture(t, func(o *Options) { o.AllowSelfBlock = true })
		ev := f.freeEvent(t, nil)
		require.NoError(t, f.core.Blocks.Block(ctx, organiser, ev.ID, organiser.ID))

		_, err := f.core.Reservations.Reserve(ctx, organiser.ID, ev.ID)
		assert.ErrorIs(t, err, model.ErrBlocked)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.core.Blocks.Block(ctx, organiser, "missing", "B"), model.ErrNotFound)
	})

	t.Run("target required", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		assert.ErrorIs(t, f.core.Blocks.Block(ctx, organiser, ev.ID, ""), model.ErrInvalidInput)
	})
}

func TestUnblock(t *testing.T) {
	ctx := context.Background()

	t.Run("lets the user reserve again", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		require.NoError(t, f.core.Blocks.Block(ctx, organiser, ev.ID, "B"))
		require.NoError(t, f.core.Blocks.Unblock(ctx, organiser, ev.ID, "B"))

		_, err := f.core.Reservations.Reserve(ctx, "B", ev.ID)
		assert.NoError(t, err)
	})

	t.Run("not blocked", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		assert.ErrorIs(t, f.core.Blocks.Unblock(ctx, organiser, ev.ID, "B"), model.ErrNotFound)
	})

	t.Run("stranger is denied", func(t *testing.T) {
		f := newFixture(t)
		ev := f.freeEvent(t, nil)
		require.NoError(t, f.core.Blocks.Block(ctx, organiser, ev.ID, "B"))
		assert.ErrorIs(t, f.core.Blocks.Unblock(ctx, stranger, ev.ID, "B"), model.ErrPermissionDenied)
	})
}

func TestListBlocks_Denied(t *testing.T) {
	f := newFixture(t)
	ev := f.freeEvent(t, nil)
	_, err := f.core.Blocks.ListBlocks(context.Background(), stranger, ev.ID)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}
