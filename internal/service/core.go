// Package service implements the reservation and payment lifecycle: capacity,
// blocking, payment state, the cancellation archive and refunds.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/gateway"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

var tracer = otel.Tracer("github.com/Shivanand-hulikatti/event-rsvp/internal/service")

const defaultGatewayTimeout = 10 * time.Second

// Options tunes the services built by NewCore.
type Options struct {
	Clock          clock.Clock
	Logger         *zap.Logger
	GatewayTimeout time.Duration
	AllowSelfBlock bool
}

// Core bundles the components of the reservation core, wired to one store and gateway.
type Core struct {
	Events       *EventService
	Reservations *ReservationService
	Blocks       *BlockRegistry
	Payments     *PaymentLedger
	Archive      *CancellationArchive
	Refunds      *RefundCoordinator
	Capacity     *CapacityLedger
}

// NewCore constructs every component with its dependencies.
func NewCore(store Store, gw gateway.Gateway, opts Options) *Core {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = defaultGatewayTimeout
	}

	capacity := NewCapacityLedger(store)
	payments := NewPaymentLedger(store, opts.Clock, opts.Logger)
	archive := NewCancellationArchive(store, opts.Clock)
	reservations := &ReservationService{
		store:          store,
		capacity:       capacity,
		payments:       payments,
		archive:        archive,
		gateway:        gw,
		clock:          opts.Clock,
		log:            opts.Logger.Named("reservations"),
		gatewayTimeout: opts.GatewayTimeout,
	}

	return &Core{
		Events:       &EventService{store: store, capacity: capacity, reservations: reservations, clock: opts.Clock, log: opts.Logger.Named("events")},
		Reservations: reservations,
		Blocks:       &BlockRegistry{store: store, capacity: capacity, reservations: reservations, clock: opts.Clock, allowSelfBlock: opts.AllowSelfBlock, log: opts.Logger.Named("blocks")},
		Payments:     payments,
		Archive:      archive,
		Refunds:      &RefundCoordinator{store: store, archive: archive, gateway: gw, clock: opts.Clock, timeout: opts.GatewayTimeout, log: opts.Logger.Named("refunds")},
		Capacity:     capacity,
	}
}

// finishSpan records err on span (expected validation outcomes are not marked as
// span errors) and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !isExpected(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// isExpected reports whether err is a validation-type outcome returned to the
// caller rather than a fault.
func isExpected(err error) bool {
	for _, kind := range []error{
		model.ErrBlocked, model.ErrAlreadyReserved, model.ErrEventFull, model.ErrNotFound,
		model.ErrAlreadyBlocked, model.ErrPermissionDenied, model.ErrInvalidState, model.ErrInvalidInput,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// gatewayFailure makes sure err matches model.ErrGatewayFailure.
func gatewayFailure(op string, err error) error {
	if errors.Is(err, model.ErrGatewayFailure) {
		return err
	}
	return &model.GatewayError{Op: op, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
}
