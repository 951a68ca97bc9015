package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, secret string, evt map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func checkoutEvent(id, eventType string, session map[string]any) map[string]any {
	return map[string]any{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data":   map[string]any{"object": session},
	}
}

func TestWebhookVerifier_CheckoutCompleted(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	payload, header := signedPayload(t, testWebhookSecret, checkoutEvent("evt_1", model.WebhookCheckoutCompleted, map[string]any{
		"id":             "cs_1",
		"object":         "checkout.session",
		"amount_total":   4999,
		"payment_status": "paid",
		"payment_intent": "pi_abc",
		"metadata":       map[string]string{MetaReservationID: "res-1"},
	}))

	evt, err := v.Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, model.WebhookCheckoutCompleted, evt.Type)
	assert.Equal(t, "res-1", evt.ReservationID)
	assert.Equal(t, "pi_abc", evt.PaymentIntentID)
	assert.Equal(t, model.Money(4999), evt.AmountTotal)
	assert.True(t, evt.Paid)
}

func TestWebhookVerifier_UnpaidSessionFallsBackToClientReference(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	payload, header := signedPayload(t, testWebhookSecret, checkoutEvent("evt_2", model.WebhookCheckoutCompleted, map[string]any{
		"id":                  "cs_2",
		"object":              "checkout.session",
		"payment_status":      "unpaid",
		"client_reference_id": "res-2",
	}))

	evt, err := v.Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "res-2", evt.ReservationID)
	assert.False(t, evt.Paid)
	assert.Empty(t, evt.PaymentIntentID)
}

func TestWebhookVerifier_PaymentFailed(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	payload, header := signedPayload(t, testWebhookSecret, checkoutEvent("evt_3", model.WebhookPaymentFailed, map[string]any{
		"id":       "pi_fail",
		"object":   "payment_intent",
		"amount":   1000,
		"metadata": map[string]string{MetaReservationID: "res-3"},
	}))

	evt, err := v.Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "res-3", evt.ReservationID)
	assert.Equal(t, "pi_fail", evt.PaymentIntentID)
	assert.Equal(t, model.Money(1000), evt.AmountTotal)
}

func TestWebhookVerifier_Rejects(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	evt := checkoutEvent("evt_4", model.WebhookCheckoutCompleted, map[string]any{"id": "cs_4"})

	t.Run("missing header", func(t *testing.T) {
		payload, _ := signedPayload(t, testWebhookSecret, evt)
		_, err := v.Parse(payload, "")
		assert.ErrorIs(t, err, model.ErrSignatureInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		payload, header := signedPayload(t, "whsec_other", evt)
		_, err := v.Parse(payload, header)
		assert.ErrorIs(t, err, model.ErrSignatureInvalid)
	})

	t.Run("tampered payload", func(t *testing.T) {
		payload, header := signedPayload(t, testWebhookSecret, evt)
		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-2] = ' '
		_, err := v.Parse(tampered, header)
		assert.ErrorIs(t, err, model.ErrSignatureInvalid)
	})

	t.Run("empty secret", func(t *testing.T) {
		payload, header := signedPayload(t, "", evt)
		_, err := NewWebhookVerifier("").Parse(payload, header)
		assert.ErrorIs(t, err, model.ErrSignatureInvalid)
	})
}
