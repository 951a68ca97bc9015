package model

import (
	"errors"
	"fmt"
)

// Error kinds returned by the reservation core. Callers match them with errors.Is;
// operations may wrap a kind with more specific context.
var (
	ErrBlocked          = errors.New("you are blocked from this event")
	ErrAlreadyReserved  = errors.New("you already have a reservation for this event")
	ErrEventFull        = errors.New("event is fully booked")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyBlocked   = errors.New("user is already blocked from this event")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidState     = errors.New("invalid state")
	ErrGatewayFailure   = errors.New("payment gateway failure")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrInvalidInput     = errors.New("invalid input")
)

// GatewayError describes a failed call to the payment gateway.
// Timeout separates deadlines and network errors from explicit declines.
type GatewayError struct {
	Op      string
	Code    string
	Timeout bool
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s failed (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is makes every GatewayError match ErrGatewayFailure.
func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayFailure
}
