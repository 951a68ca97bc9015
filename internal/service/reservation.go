package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/gateway"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// ReservationService creates and cancels reservations.
type ReservationService struct {
	store          Store
	capacity       *CapacityLedger
	payments       *PaymentLedger
	archive        *CancellationArchive
	gateway        gateway.Gateway
	clock          clock.Clock
	log            *zap.Logger
	gatewayTimeout time.Duration
}

// Reserve claims a slot of the event for userID.
//
// With the event row locked, the first failing check wins: the user is blocked
// (ErrBlocked), already holds a reservation (ErrAlreadyReserved), or the event is
// at capacity (ErrEventFull). The new reservation starts as pending for paid
// events and none for free ones.
func (s *ReservationService) Reserve(ctx context.Context, userID, eventID string) (res *model.Reservation, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.Reserve")
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("user.id", userID))
	defer func() { finishSpan(span, err) }()

	res, _, err = s.reserve(ctx, userID, eventID)
	return res, err
}

// ReserveWithCheckout reserves and, for paid events, opens a checkout session.
// When only the checkout fails, the pending reservation is returned together with
// an error matching model.ErrGatewayFailure so the user can retry payment.
func (s *ReservationService) ReserveWithCheckout(ctx context.Context, userID, eventID string) (*model.ReserveResponse, error) {
	res, event, err := s.reserve(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	out := &model.ReserveResponse{Reservation: res}
	if res.PaymentStatus != model.PaymentPending {
		return out, nil
	}

	url, err := s.startCheckout(ctx, event, res)
	if err != nil {
		return out, err
	}
	out.CheckoutURL = url
	return out, nil
}

func (s *ReservationService) reserve(ctx context.Context, userID, eventID string) (*model.Reservation, *model.Event, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: user id is required", model.ErrInvalidInput)
	}

	var (
		res   *model.Reservation
		event *model.Event
	)
	err := s.capacity.WithEventLock(ctx, eventID, func(ctx context.Context, ev *model.Event) error {
		blocked, err := s.store.IsBlocked(ctx, ev.ID, userID)
		if err != nil {
			return err
		}
		if blocked {
			return model.ErrBlocked
		}

		if _, err := s.store.FindReservation(ctx, ev.ID, userID); err == nil {
			return model.ErrAlreadyReserved
		} else if !errors.Is(err, model.ErrNotFound) {
			return err
		}

		room, err := s.capacity.HasRoom(ctx, ev)
		if err != nil {
			return err
		}
		if !room {
			return model.ErrEventFull
		}

		r := &model.Reservation{
			ID:        uuid.NewString(),
			EventID:   ev.ID,
			UserID:    userID,
			CreatedAt: s.clock.Now(),
		}
		s.payments.InitializePending(r, ev)
		if err := s.store.InsertReservation(ctx, r); err != nil {
			return err
		}
		res, event = r, ev
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("reservation created",
		zap.String("reservation_id", res.ID),
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.String("payment_status", string(res.PaymentStatus)),
	)
	return res, event, nil
}

// Checkout (re)starts payment for the user's pending or failed reservation of a
// paid event. A failed reservation goes back to pending first; a gateway failure
// leaves it pending.
func (s *ReservationService) Checkout(ctx context.Context, userID, eventID string) (url string, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.Checkout")
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("user.id", userID))
	defer func() { finishSpan(span, err) }()

	var (
		res   *model.Reservation
		event *model.Event
	)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		ev, err := s.store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.RequiresPayment {
			return fmt.Errorf("%w: event does not require payment", model.ErrInvalidState)
		}
		found, err := s.store.FindReservation(ctx, ev.ID, userID)
		if err != nil {
			return err
		}
		r, err := s.store.LockReservation(ctx, found.ID)
		if err != nil {
			return err
		}
		switch r.PaymentStatus {
		case model.PaymentPaid:
			return fmt.Errorf("%w: reservation is already paid", model.ErrInvalidState)
		case model.PaymentFailed:
			r.PaymentStatus = model.PaymentPending
			if err := s.store.UpdateReservationPayment(ctx, r); err != nil {
				return err
			}
		}
		res, event = r, ev
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.startCheckout(ctx, event, res)
}

func (s *ReservationService) startCheckout(ctx context.Context, event *model.Event, res *model.Reservation) (string, error) {
	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	url, err := s.gateway.CreateCheckoutSession(gwCtx, gateway.CheckoutRequest{
		EventID:       event.ID,
		EventName:     event.Name,
		UserID:        res.UserID,
		ReservationID: res.ID,
		Amount:        event.Price,
		Currency:      event.Currency,
	})
	if err != nil {
		s.log.Warn("checkout session failed; reservation stays pending",
			zap.String("reservation_id", res.ID),
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err),
		)
		return "", gatewayFailure("checkout", err)
	}
	return url, nil
}

// Cancel deletes the user's own reservation for the event. A paid reservation is
// archived first with initiatedBy=self.
func (s *ReservationService) Cancel(ctx context.Context, userID, eventID string) (err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.Cancel")
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("user.id", userID))
	defer func() { finishSpan(span, err) }()

	return s.capacity.WithEventLock(ctx, eventID, func(ctx context.Context, event *model.Event) error {
		return s.cancelLocked(ctx, event, userID, model.InitiatedBySelf)
	})
}

// CancelAsOrganiser deletes targetUserID's reservation on behalf of the event's
// organiser or an admin. Paid reservations are archived with initiatedBy=organiser.
func (s *ReservationService) CancelAsOrganiser(ctx context.Context, actor model.Actor, eventID, targetUserID string) (err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.CancelAsOrganiser")
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("user.id", targetUserID), attribute.String("actor.id", actor.ID))
	defer func() { finishSpan(span, err) }()

	return s.capacity.WithEventLock(ctx, eventID, func(ctx context.Context, event *model.Event) error {
		if err := requireEventAccess(actor, event); err != nil {
			return err
		}
		return s.cancelLocked(ctx, event, targetUserID, model.InitiatedByOrganiser)
	})
}

// cancelLocked cancels userID's reservation. The caller holds the event lock.
func (s *ReservationService) cancelLocked(ctx context.Context, event *model.Event, userID string, by model.Initiator) error {
	found, err := s.store.FindReservation(ctx, event.ID, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: no reservation for this event", model.ErrNotFound)
		}
		return err
	}
	return s.removeLocked(ctx, event, found.ID, by)
}

// removeLocked archives (when paid), then deletes payment rows and the reservation.
// The reservation row is locked so a concurrent webhook confirmation is either
// fully visible here or finds the reservation gone.
func (s *ReservationService) removeLocked(ctx context.Context, event *model.Event, reservationID string, by model.Initiator) error {
	r, err := s.store.LockReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	var archived *model.ArchiveEntry
	if event.RequiresPayment && r.PaymentStatus == model.PaymentPaid {
		archived, err = s.archive.Archive(ctx, r, event, by)
		if err != nil {
			return err
		}
	}
	if _, err := s.store.DeleteReservationPayments(ctx, r.ID); err != nil {
		return err
	}
	if err := s.store.DeleteReservation(ctx, r.ID); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("reservation_id", r.ID),
		zap.String("event_id", event.ID),
		zap.String("user_id", r.UserID),
		zap.String("initiated_by", string(by)),
		zap.String("payment_status", string(r.PaymentStatus)),
	}
	if archived != nil {
		fields = append(fields, zap.String("archive_id", archived.ID))
	}
	s.log.Info("reservation cancelled", fields...)
	return nil
}
