package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{name: "free unlimited", event: Event{}},
		{name: "paid with price", event: Event{RequiresPayment: true, Price: 4999, Capacity: intPtr(2)}},
		{name: "paid without price", event: Event{RequiresPayment: true}, wantErr: true},
		{name: "free with price", event: Event{Price: 100}, wantErr: true},
		{name: "zero capacity", event: Event{Capacity: intPtr(0)}, wantErr: true},
		{name: "negative capacity", event: Event{Capacity: intPtr(-3)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvent_HasStarted(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	e := Event{StartsAt: now}

	assert.True(t, e.HasStarted(now))
	assert.True(t, e.HasStarted(now.Add(time.Second)))
	assert.False(t, e.HasStarted(now.Add(-time.Second)))
}

func TestArchiveEntry_Refundable(t *testing.T) {
	assert.NoError(t, (&ArchiveEntry{PaymentStatus: PaymentPaid, RefundStatus: RefundNone}).Refundable())
	assert.NoError(t, (&ArchiveEntry{PaymentStatus: PaymentPaid, RefundStatus: RefundFailed}).Refundable())

	for _, entry := range []ArchiveEntry{
		{PaymentStatus: PaymentPending, RefundStatus: RefundNone},
		{PaymentStatus: PaymentPaid, RefundStatus: RefundRefunded},
		{PaymentStatus: PaymentPaid, RefundStatus: RefundPending},
	} {
		assert.ErrorIs(t, entry.Refundable(), ErrInvalidState)
	}
}

func TestPaymentStatus_Valid(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentNone, PaymentPending, PaymentPaid, PaymentFailed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, PaymentStatus("refunded").Valid())
}

func TestActor_IsAdmin(t *testing.T) {
	assert.True(t, Actor{ID: "a", Capabilities: []Capability{CapabilityAdmin}}.IsAdmin())
	assert.False(t, Actor{ID: "a"}.IsAdmin())
}

func TestGatewayError_MatchesKind(t *testing.T) {
	cause := errors.New("card_declined")
	err := error(&GatewayError{Op: "refund", Code: "card_declined", Err: cause})

	assert.ErrorIs(t, err, ErrGatewayFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "card_declined")
}
