package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// BlockRegistry bars users from individual events.
type BlockRegistry struct {
	store          Store
	capacity       *CapacityLedger
	reservations   *ReservationService
	clock          clock.Clock
	allowSelfBlock bool
	log            *zap.Logger
}

// Block bars targetUserID from eventID. A live reservation held by the target is
// cancelled first through the organiser path, in the same transaction, so a paid
// reservation is archived exactly as an organiser cancellation would.
func (b *BlockRegistry) Block(ctx context.Context, actor model.Actor, eventID, targetUserID string) (err error) {
	ctx, span := tracer.Start(ctx, "BlockRegistry.Block")
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("user.id", targetUserID), attribute.String("actor.id", actor.ID))
	defer func() { finishSpan(span, err) }()

	if targetUserID == "" {
		return fmt.Errorf("%w: user id is required", model.ErrInvalidInput)
	}

	var cancelled bool
	err = b.capacity.WithEventLock(ctx, eventID, func(ctx context.Context, event *model.Event) error {
		if err := requireEventAccess(actor, event); err != nil {
			return err
		}
		if targetUserID == actor.ID && !b.allowSelfBlock {
			return fmt.Errorf("%w: cannot block yourself", model.ErrInvalidState)
		}

		blocked, err := b.store.IsBlocked(ctx, event.ID, targetUserID)
		if err != nil {
			return err
		}
		if blocked {
			return model.ErrAlreadyBlocked
		}

		existing, err := b.store.FindReservation(ctx, event.ID, targetUserID)
		switch {
		case err == nil:
			if err := b.reservations.removeLocked(ctx, event, existing.ID, model.InitiatedByOrganiser); err != nil {
				return err
			}
			cancelled = true
		case !errors.Is(err, model.ErrNotFound):
			return err
		}

		return b.store.InsertBlock(ctx, &model.BlockRecord{
			EventID:   event.ID,
			UserID:    targetUserID,
			BlockedBy: actor.ID,
			CreatedAt: b.clock.Now(),
		})
	})
	if err != nil {
		return err
	}

	b.log.Info("user blocked",
		zap.String("event_id", eventID),
		zap.String("user_id", targetUserID),
		zap.String("blocked_by", actor.ID),
		zap.Bool("reservation_cancelled", cancelled),
	)
	return nil
}

// Unblock lifts a block. Any reservation cancelled by the block stays cancelled.
func (b *BlockRegistry) Unblock(ctx context.Context, actor model.Actor, eventID, targetUserID string) (err error) {
	ctx, span := tracer.Start(ctx, "BlockRegistry.Unblock")
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("user.id", targetUserID), attribute.String("actor.id", actor.ID))
	defer func() { finishSpan(span, err) }()

	err = b.capacity.WithEventLock(ctx, eventID, func(ctx context.Context, event *model.Event) error {
		if err := requireEventAccess(actor, event); err != nil {
			return err
		}
		if err := b.store.DeleteBlock(ctx, event.ID, targetUserID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return fmt.Errorf("%w: user is not blocked", model.ErrNotFound)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.log.Info("user unblocked",
		zap.String("event_id", eventID),
		zap.String("user_id", targetUserID),
		zap.String("unblocked_by", actor.ID),
	)
	return nil
}

// ListBlocks returns the block records of an event.
func (b *BlockRegistry) ListBlocks(ctx context.Context, actor model.Actor, eventID string) ([]model.BlockRecord, error) {
	event, err := b.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(actor, event); err != nil {
		return nil, err
	}
	return b.store.ListBlocks(ctx, event.ID)
}
