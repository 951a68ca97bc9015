package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/gateway"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// RefundCoordinator issues gateway refunds for archived cancellations.
type RefundCoordinator struct {
	store   Store
	archive *CancellationArchive
	gateway gateway.Gateway
	clock   clock.Clock
	timeout time.Duration
	log     *zap.Logger
}

// Refund returns the money of an archived paid cancellation, at most once.
//
// The entry is claimed (refund_status=pending) in its own transaction before the
// gateway is called, so two concurrent refunds cannot both reach the gateway. The
// gateway call uses an idempotency key derived from the entry and attempt number.
// On gateway failure the entry is marked failed and may be retried.
func (rc *RefundCoordinator) Refund(ctx context.Context, actor model.Actor, archiveID string) (entry *model.ArchiveEntry, err error) {
	ctx, span := tracer.Start(ctx, "RefundCoordinator.Refund")
	span.SetAttributes(attribute.String("archive.id", archiveID), attribute.String("actor.id", actor.ID))
	defer func() { finishSpan(span, err) }()

	claimed, err := rc.claim(ctx, actor, archiveID)
	if err != nil {
		return nil, err
	}
	return rc.issue(ctx, actor, claimed)
}

// ReconcileRefund settles an entry left pending by an interrupted refund, for
// example when the gateway refunded but recording the result failed. It repeats
// the last attempt's gateway call with the same idempotency key, so a refund the
// gateway already made is recorded rather than issued twice. Admin only.
func (rc *RefundCoordinator) ReconcileRefund(ctx context.Context, actor model.Actor, archiveID string) (entry *model.ArchiveEntry, err error) {
	ctx, span := tracer.Start(ctx, "RefundCoordinator.ReconcileRefund")
	span.SetAttributes(attribute.String("archive.id", archiveID), attribute.String("actor.id", actor.ID))
	defer func() { finishSpan(span, err) }()

	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only an admin can reconcile refunds", model.ErrPermissionDenied)
	}
	pending, err := rc.store.GetArchiveEntry(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	if pending.RefundStatus != model.RefundPending || pending.RefundAttempts == 0 {
		return nil, fmt.Errorf("%w: no refund is pending for this cancellation", model.ErrInvalidState)
	}

	rc.log.Warn("reconciling pending refund",
		zap.String("archive_id", pending.ID),
		zap.Int("attempt", pending.RefundAttempts),
		zap.String("actor_id", actor.ID),
	)
	return rc.issue(ctx, actor, pending)
}

// issue calls the gateway for the entry's current attempt and records the outcome.
func (rc *RefundCoordinator) issue(ctx context.Context, actor model.Actor, claimed *model.ArchiveEntry) (*model.ArchiveEntry, error) {
	gwCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	refundID, gwErr := rc.gateway.RefundPayment(gwCtx, gateway.RefundRequest{
		PaymentIntentID: claimed.PaymentIntentID,
		Amount:          claimed.AmountPaid,
		IdempotencyKey:  refundKey(claimed),
	})
	cancel()

	// The outcome must be recorded even if the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	if gwErr != nil {
		msg := gwErr.Error()
		claimed.RefundStatus = model.RefundFailed
		claimed.RefundError = &msg
		if err := rc.store.UpdateArchiveRefund(persistCtx, claimed); err != nil {
			rc.log.Error("failed to record refund failure", zap.String("archive_id", claimed.ID), zap.Error(err))
		}
		rc.log.Warn("refund failed",
			zap.String("archive_id", claimed.ID),
			zap.String("gateway", rc.gateway.Name()),
			zap.Int("attempt", claimed.RefundAttempts),
			zap.Error(gwErr),
		)
		return nil, gatewayFailure("refund", gwErr)
	}

	now := rc.clock.Now()
	claimed.RefundStatus = model.RefundRefunded
	claimed.RefundID = &refundID
	claimed.RefundedBy = &actor.ID
	claimed.RefundedAt = &now
	claimed.RefundError = nil
	if err := rc.store.UpdateArchiveRefund(persistCtx, claimed); err != nil {
		// Money has moved but the entry is still pending until ReconcileRefund runs.
		rc.log.Error("refund issued but not recorded",
			zap.String("archive_id", claimed.ID),
			zap.String("refund_id", refundID),
			zap.Error(err),
		)
		return nil, err
	}

	rc.log.Info("refund issued",
		zap.String("archive_id", claimed.ID),
		zap.String("refund_id", refundID),
		zap.Stringer("amount", claimed.AmountPaid),
		zap.String("refunded_by", actor.ID),
	)
	return claimed, nil
}

func refundKey(e *model.ArchiveEntry) string {
	return fmt.Sprintf("refund-%s-%d", e.ID, e.RefundAttempts)
}

func (rc *RefundCoordinator) claim(ctx context.Context, actor model.Actor, archiveID string) (*model.ArchiveEntry, error) {
	var claimed *model.ArchiveEntry
	err := rc.store.WithTx(ctx, func(ctx context.Context) error {
		entry, err := rc.store.LockArchiveEntry(ctx, archiveID)
		if err != nil {
			return err
		}
		if err := rc.archive.authorize(ctx, actor, entry); err != nil {
			return err
		}
		if err := entry.Refundable(); err != nil {
			return err
		}
		entry.RefundStatus = model.RefundPending
		entry.RefundAttempts++
		entry.RefundError = nil
		if err := rc.store.UpdateArchiveRefund(ctx, entry); err != nil {
			return err
		}
		claimed = entry
		return nil
	})
	return claimed, err
}
