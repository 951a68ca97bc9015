package service

import (
	"context"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// CapacityLedger answers capacity questions against the live reservation count.
// There is no stored counter to drift: deleting a reservation row is what
// releases its slot.
type CapacityLedger struct {
	store Store
}

// NewCapacityLedger constructs a CapacityLedger.
func NewCapacityLedger(store Store) *CapacityLedger {
	return &CapacityLedger{store: store}
}

// WithEventLock runs fn in a transaction that holds the event's row lock, so the
// capacity check and whatever fn writes form one atomic unit. Every operation that
// adds or removes reservations for an event goes through here.
func (c *CapacityLedger) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, event *model.Event) error) error {
	return c.store.WithTx(ctx, func(ctx context.Context) error {
		event, err := c.store.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		return fn(ctx, event)
	})
}

// HasRoom reports whether one more reservation fits. Only meaningful while the
// event lock is held.
func (c *CapacityLedger) HasRoom(ctx context.Context, event *model.Event) (bool, error) {
	if event.Unlimited() {
		return true, nil
	}
	n, err := c.store.CountReservations(ctx, event.ID)
	if err != nil {
		return false, err
	}
	return n < *event.Capacity, nil
}

// Usage returns the live reservation count and, for bounded events, the slots left.
func (c *CapacityLedger) Usage(ctx context.Context, event *model.Event) (int, *int, error) {
	n, err := c.store.CountReservations(ctx, event.ID)
	if err != nil {
		return 0, nil, err
	}
	if event.Unlimited() {
		return n, nil, nil
	}
	left := *event.Capacity - n
	if left < 0 {
		left = 0
	}
	return n, &left, nil
}

// IsFull reports whether the event has reached capacity right now. It takes no
// lock, so it is advisory only.
func (c *CapacityLedger) IsFull(ctx context.Context, event *model.Event) (bool, error) {
	_, left, err := c.Usage(ctx, event)
	if err != nil {
		return false, err
	}
	return left != nil && *left == 0, nil
}
