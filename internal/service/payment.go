package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// PaymentLedger owns the per-reservation payment state machine
// (none | pending -> paid | failed) and the settled-payment records.
type PaymentLedger struct {
	store Store
	clock clock.Clock
	log   *zap.Logger
}

// NewPaymentLedger constructs a PaymentLedger.
func NewPaymentLedger(store Store, clk clock.Clock, log *zap.Logger) *PaymentLedger {
	return &PaymentLedger{store: store, clock: clk, log: log.Named("payments")}
}

// InitializePending sets the initial payment status of a new reservation.
func (p *PaymentLedger) InitializePending(r *model.Reservation, event *model.Event) {
	if event.RequiresPayment {
		r.PaymentStatus = model.PaymentPending
		return
	}
	r.PaymentStatus = model.PaymentNone
}

// ConfirmPayment marks the reservation paid and records the settled payment.
// It is idempotent per payment intent, and a reservation that no longer exists
// (cancelled before the webhook arrived) is a logged no-op.
func (p *PaymentLedger) ConfirmPayment(ctx context.Context, reservationID, paymentIntentID string, amount model.Money) (err error) {
	ctx, span := tracer.Start(ctx, "PaymentLedger.ConfirmPayment")
	span.SetAttributes(attribute.String("reservation.id", reservationID), attribute.String("payment_intent.id", paymentIntentID))
	defer func() { finishSpan(span, err) }()

	return p.store.WithTx(ctx, func(ctx context.Context) error {
		return p.confirm(ctx, reservationID, paymentIntentID, amount)
	})
}

func (p *PaymentLedger) confirm(ctx context.Context, reservationID, paymentIntentID string, amount model.Money) error {
	if reservationID == "" || paymentIntentID == "" {
		return fmt.Errorf("%w: reservation id and payment intent id are required", model.ErrInvalidInput)
	}

	exists, err := p.store.PaymentExists(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	if exists {
		p.log.Debug("payment already recorded", zap.String("payment_intent_id", paymentIntentID))
		return nil
	}

	r, err := p.store.LockReservation(ctx, reservationID)
	if errors.Is(err, model.ErrNotFound) {
		p.log.Warn("payment confirmed for a reservation that no longer exists",
			zap.String("reservation_id", reservationID),
			zap.String("payment_intent_id", paymentIntentID),
			zap.Stringer("amount", amount),
		)
		return nil
	}
	if err != nil {
		return err
	}

	switch r.PaymentStatus {
	case model.PaymentNone:
		return fmt.Errorf("%w: reservation %s is for a free event", model.ErrInvalidState, r.ID)
	case model.PaymentPaid:
		if r.PaymentIntentID != nil && *r.PaymentIntentID == paymentIntentID {
			return nil
		}
		return fmt.Errorf("%w: reservation %s already paid by another payment intent", model.ErrInvalidState, r.ID)
	}

	r.PaymentStatus = model.PaymentPaid
	r.PaymentIntentID = &paymentIntentID
	r.AmountPaid = &amount
	if err := p.store.UpdateReservationPayment(ctx, r); err != nil {
		return err
	}
	if err := p.store.InsertPayment(ctx, &model.Payment{
		ID:              uuid.NewString(),
		ReservationID:   r.ID,
		PaymentIntentID: paymentIntentID,
		Amount:          amount,
		Status:          model.PaymentPaid,
		CreatedAt:       p.clock.Now(),
	}); err != nil {
		return err
	}

	p.log.Info("payment confirmed",
		zap.String("reservation_id", r.ID),
		zap.String("payment_intent_id", paymentIntentID),
		zap.Stringer("amount", amount),
	)
	return nil
}

// FailPayment moves a pending reservation to failed. Missing or already settled
// reservations are left alone.
func (p *PaymentLedger) FailPayment(ctx context.Context, reservationID string) error {
	return p.store.WithTx(ctx, func(ctx context.Context) error {
		return p.fail(ctx, reservationID)
	})
}

func (p *PaymentLedger) fail(ctx context.Context, reservationID string) error {
	if reservationID == "" {
		return fmt.Errorf("%w: reservation id is required", model.ErrInvalidInput)
	}
	r, err := p.store.LockReservation(ctx, reservationID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if r.PaymentStatus != model.PaymentPending {
		return nil
	}
	r.PaymentStatus = model.PaymentFailed
	if err := p.store.UpdateReservationPayment(ctx, r); err != nil {
		return err
	}
	p.log.Info("payment failed", zap.String("reservation_id", r.ID))
	return nil
}

// HandleWebhook applies a verified gateway event exactly once. The event id is
// claimed in the same transaction as the state change, so a redelivery after a
// crash is processed again and a redelivery after a commit is ignored.
//
// Events that can never be applied (bad metadata, impossible transitions) are
// logged and acknowledged; returning them as errors would only make the gateway
// retry forever.
func (p *PaymentLedger) HandleWebhook(ctx context.Context, evt *model.WebhookEvent) (err error) {
	ctx, span := tracer.Start(ctx, "PaymentLedger.HandleWebhook")
	span.SetAttributes(attribute.String("webhook.id", evt.ID), attribute.String("webhook.type", evt.Type))
	defer func() { finishSpan(span, err) }()

	log := p.log.With(zap.String("webhook_id", evt.ID), zap.String("type", evt.Type))

	return p.store.WithTx(ctx, func(ctx context.Context) error {
		claimed, err := p.store.ClaimWebhookEvent(ctx, evt.ID, evt.Type)
		if err != nil {
			return err
		}
		if !claimed {
			log.Info("duplicate webhook delivery ignored")
			return nil
		}

		switch evt.Type {
		case model.WebhookCheckoutCompleted, model.WebhookAsyncPaymentSucceeded:
			if !evt.Paid {
				log.Info("checkout completed without settled payment; waiting for async result",
					zap.String("reservation_id", evt.ReservationID))
				return nil
			}
			err = p.confirm(ctx, evt.ReservationID, evt.PaymentIntentID, evt.AmountTotal)
		case model.WebhookCheckoutExpired, model.WebhookAsyncPaymentFailed, model.WebhookPaymentFailed:
			err = p.fail(ctx, evt.ReservationID)
		default:
			log.Debug("webhook type not handled")
			return nil
		}

		if errors.Is(err, model.ErrInvalidState) || errors.Is(err, model.ErrInvalidInput) {
			log.Error("webhook could not be applied", zap.String("reservation_id", evt.ReservationID), zap.Error(err))
			return nil
		}
		return err
	})
}
