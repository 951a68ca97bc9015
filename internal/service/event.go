package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// EventService creates, reads and deletes events.
type EventService struct {
	store        Store
	capacity     *CapacityLedger
	reservations *ReservationService
	clock        clock.Clock
	log          *zap.Logger
}

// CreateEvent validates req and persists a new event owned by actor.
func (s *EventService) CreateEvent(ctx context.Context, actor model.Actor, req model.CreateEventRequest) (*model.Event, error) {
	if actor.ID == "" {
		return nil, model.ErrPermissionDenied
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalidInput)
	}
	if req.StartsAt.IsZero() {
		return nil, fmt.Errorf("%w: starts_at is required", model.ErrInvalidInput)
	}

	var price model.Money
	if strings.TrimSpace(req.Price) != "" {
		p, err := model.ParseMoney(req.Price)
		if err != nil {
			return nil, err
		}
		price = p
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	event := &model.Event{
		ID:              uuid.NewString(),
		OrganizerID:     actor.ID,
		Name:            name,
		Capacity:        req.Capacity,
		RequiresPayment: req.RequiresPayment,
		Price:           price,
		Currency:        currency,
		StartsAt:        req.StartsAt.UTC(),
		CreatedAt:       s.clock.Now(),
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.log.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("organizer_id", actor.ID),
		zap.Bool("requires_payment", event.RequiresPayment),
	)
	return event, nil
}

// GetEvent returns an event with its live reservation count.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.EventDetails, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	reserved, remaining, err := s.capacity.Usage(ctx, event)
	if err != nil {
		return nil, err
	}
	return &model.EventDetails{Event: *event, Reserved: reserved, Remaining: remaining}, nil
}

// ListReservations returns the live reservations of an event to its organiser.
func (s *EventService) ListReservations(ctx context.Context, actor model.Actor, id string) ([]model.Reservation, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireEventAccess(actor, event); err != nil {
		return nil, err
	}
	return s.store.ListReservations(ctx, event.ID)
}

// DeleteEvent removes an event that has not started yet. Its reservations go
// first, each through the organiser cancel path, so paid ones end up in the
// cancellation archive.
func (s *EventService) DeleteEvent(ctx context.Context, actor model.Actor, eventID string) (err error) {
	ctx, span := tracer.Start(ctx, "EventService.DeleteEvent")
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("actor.id", actor.ID))
	defer func() { finishSpan(span, err) }()

	var removed int
	err = s.capacity.WithEventLock(ctx, eventID, func(ctx context.Context, event *model.Event) error {
		if err := requireEventAccess(actor, event); err != nil {
			return err
		}
		if event.HasStarted(s.clock.Now()) {
			return fmt.Errorf("%w: event already started", model.ErrInvalidState)
		}

		live, err := s.store.ListReservations(ctx, event.ID)
		if err != nil {
			return err
		}
		for _, r := range live {
			if err := s.reservations.removeLocked(ctx, event, r.ID, model.InitiatedByOrganiser); err != nil {
				return err
			}
		}
		removed = len(live)
		return s.store.DeleteEvent(ctx, event.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info("event deleted",
		zap.String("event_id", eventID),
		zap.String("deleted_by", actor.ID),
		zap.Int("reservations_removed", removed),
	)
	return nil
}
