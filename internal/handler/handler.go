// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/service"
)

const (
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidInput       = "invalid_input"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeBlocked            = "blocked"
	codeAlreadyReserved    = "already_reserved"
	codeEventFull          = "event_full"
	codeAlreadyBlocked     = "already_blocked"
	codeInvalidState       = "invalid_state"
	codeGatewayFailure     = "gateway_failure"
	codeGatewayTimeout     = "gateway_timeout"
	codeSignatureInvalid   = "signature_invalid"
	codeIdempotencyReused  = "idempotency_key_reused"
	codeRequestInProgress  = "request_in_progress"
	codeInternalError      = "internal_error"
)

// EventHandler holds the HTTP handlers for events, reservations, blocks and refunds.
type EventHandler struct {
	core *service.Core
	log  *zap.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(core *service.Core, log *zap.Logger) *EventHandler {
	return &EventHandler{core: core, log: log}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// errorStatus maps an error kind from the service layer to a status and code.
func errorStatus(err error) (int, string) {
	var gwErr *model.GatewayError
	switch {
	case errors.Is(err, model.ErrBlocked):
		return http.StatusForbidden, codeBlocked
	case errors.Is(err, model.ErrAlreadyReserved):
		return http.StatusConflict, codeAlreadyReserved
	case errors.Is(err, model.ErrEventFull):
		return http.StatusConflict, codeEventFull
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, model.ErrAlreadyBlocked):
		return http.StatusConflict, codeAlreadyBlocked
	case errors.Is(err, model.ErrPermissionDenied):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusUnprocessableEntity, codeInvalidState
	case errors.Is(err, model.ErrSignatureInvalid):
		return http.StatusBadRequest, codeSignatureInvalid
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, codeInvalidInput
	case errors.As(err, &gwErr) && gwErr.Timeout:
		return http.StatusGatewayTimeout, codeGatewayTimeout
	case errors.Is(err, model.ErrGatewayFailure):
		return http.StatusBadGateway, codeGatewayFailure
	}
	return http.StatusInternalServerError, codeInternalError
}

// writeServiceError writes the response for err. Expected outcomes carry their
// own message; gateway and internal failures are logged and not echoed.
func (h *EventHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	switch code {
	case codeInternalError:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, code, "internal error")
	case codeGatewayFailure, codeGatewayTimeout:
		writeError(w, status, code, "payment provider unavailable, please retry")
	default:
		writeError(w, status, code, err.Error())
	}
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body: "+err.Error())
		return
	}

	event, err := h.core.Events.CreateEvent(r.Context(), ActorFromContext(r.Context()), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// GetEvent handles GET /events/{id}
// Returns the event with its live reservation count.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	details, err := h.core.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.core.Events.DeleteEvent(r.Context(), ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListReservations handles GET /events/{id}/reservations
func (h *EventHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.core.Events.ListReservations(r.Context(), ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	// Return an empty array rather than null for better client compatibility.
	if list == nil {
		list = []model.Reservation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ─── Reservations ─────────────────────────────────────────────────────────────

type reserveFailure struct {
	model.ErrorResponse
	Reservation *model.Reservation `json:"reservation"`
}

// Reserve handles POST /events/{id}/reservations
// Paid events return a checkout URL. If only the checkout fails, the pending
// reservation is returned alongside the gateway error so payment can be retried.
func (h *EventHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	resp, err := h.core.Reservations.ReserveWithCheckout(r.Context(), actor.ID, chi.URLParam(r, "id"))
	if err != nil {
		if resp != nil {
			status, code := errorStatus(err)
			writeJSON(w, status, reserveFailure{
				ErrorResponse: model.ErrorResponse{Error: "reservation is pending but checkout failed, please retry payment", Code: code},
				Reservation:   resp.Reservation,
			})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Cancel handles DELETE /events/{id}/reservations
func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if err := h.core.Reservations.Cancel(r.Context(), actor.ID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles POST /events/{id}/reservations/checkout
func (h *EventHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	url, err := h.core.Reservations.Checkout(r.Context(), actor.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

// CancelAttendee handles DELETE /events/{id}/reservations/{userID}
func (h *EventHandler) CancelAttendee(w http.ResponseWriter, r *http.Request) {
	err := h.core.Reservations.CancelAsOrganiser(r.Context(), ActorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Blocks ───────────────────────────────────────────────────────────────────

// ListBlocks handles GET /events/{id}/blocks
func (h *EventHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	list, err := h.core.Blocks.ListBlocks(r.Context(), ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.BlockRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Block handles PUT /events/{id}/blocks/{userID}
func (h *EventHandler) Block(w http.ResponseWriter, r *http.Request) {
	err := h.core.Blocks.Block(r.Context(), ActorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unblock handles DELETE /events/{id}/blocks/{userID}
func (h *EventHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	err := h.core.Blocks.Unblock(r.Context(), ActorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Cancellations & refunds ──────────────────────────────────────────────────

// ListCancellations handles GET /events/{id}/cancellations
func (h *EventHandler) ListCancellations(w http.ResponseWriter, r *http.Request) {
	list, err := h.core.Archive.List(r.Context(), ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.ArchiveEntry{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetCancellation handles GET /cancellations/{id}
func (h *EventHandler) GetCancellation(w http.ResponseWriter, r *http.Request) {
	entry, err := h.core.Archive.Get(r.Context(), ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Refund handles POST /cancellations/{id}/refund
func (h *EventHandler) Refund(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	entry, err := h.core.Refunds.Refund(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ReconcileRefund handles POST /cancellations/{id}/refund/reconcile
func (h *EventHandler) ReconcileRefund(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	entry, err := h.core.Refunds.ReconcileRefund(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck handles GET /health
func HealthCheck(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":   "unavailable",
					"database": fmt.Sprintf("unreachable: %v", err),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
