package handler

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

const maxWebhookBytes = 64 << 10

// WebhookParser verifies a signed gateway delivery and decodes it.
type WebhookParser interface {
	Parse(payload []byte, signatureHeader string) (*model.WebhookEvent, error)
}

// WebhookApplier applies a verified gateway event.
type WebhookApplier interface {
	HandleWebhook(ctx context.Context, evt *model.WebhookEvent) error
}

// WebhookHandler ingests payment gateway webhooks.
type WebhookHandler struct {
	parser  WebhookParser
	applier WebhookApplier
	log     *zap.Logger
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(parser WebhookParser, applier WebhookApplier, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{parser: parser, applier: applier, log: log}
}

// Stripe handles POST /webhooks/stripe
// A bad signature is rejected with 400 before anything is read from the payload.
// Processing failures return 500 so the gateway redelivers.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unreadable webhook body")
		return
	}

	evt, err := h.parser.Parse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		status, code := errorStatus(err)
		h.log.Warn("webhook rejected", zap.Int("status", status), zap.Error(err))
		writeError(w, status, code, err.Error())
		return
	}

	if err := h.applier.HandleWebhook(r.Context(), evt); err != nil {
		h.log.Error("webhook processing failed",
			zap.String("webhook_id", evt.ID),
			zap.String("type", evt.Type),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, codeInternalError, "webhook processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
