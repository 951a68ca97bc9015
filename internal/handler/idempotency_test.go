package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

func TestIdempotency_ReplaysReservation(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestServer(t, nil, withRedis(rdb))
	ev := s.createEvent(t, map[string]any{"name": "Meetup"})
	path := "/events/" + ev.ID + "/reservations"
	alice := signToken(t, "alice", false)
	key := map[string]string{IdempotencyKeyHeader: "key-1"}

	first := s.do(t, request{method: http.MethodPost, path: path, token: alice, header: key})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	again := s.do(t, request{method: http.MethodPost, path: path, token: alice, header: key})
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), again.Body.String())

	list, err := s.store.ListReservations(t.Context(), ev.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Without the key the duplicate reaches the service.
	w := s.do(t, request{method: http.MethodPost, path: path, token: alice})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Keys are scoped to the actor.
	w = s.do(t, request{method: http.MethodPost, path: path, token: signToken(t, "bob", false), header: key})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_KeyReusedForDifferentRequest(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestServer(t, nil, withRedis(rdb))
	ev := s.createEvent(t, map[string]any{"name": "Meetup"})
	alice := signToken(t, "alice", false)
	key := map[string]string{IdempotencyKeyHeader: "key-1"}

	w := s.do(t, request{method: http.MethodPost, path: "/events/" + ev.ID + "/reservations", token: alice, header: key})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, request{method: http.MethodPost, path: "/events/" + ev.ID + "/reservations/checkout", token: alice, header: key})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, codeIdempotencyReused, decode[model.ErrorResponse](t, w).Code)
}

func idempotentRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(body))
	r.Header.Set(IdempotencyKeyHeader, "k")
	return r.WithContext(WithActor(r.Context(), model.Actor{ID: "alice"}))
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	rdb := newFakeRedis()
	calls := 0
	h := Idempotency(rdb, time.Hour, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeError(w, http.StatusBadGateway, codeGatewayFailure, "try again")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"call": calls})
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, idempotentRequest(`{}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, rdb.keys())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, idempotentRequest(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"idempotency:alice:k"}, rdb.keys())
}

func TestIdempotency_InProgress(t *testing.T) {
	rdb := newFakeRedis()
	r := idempotentRequest(`{"a":1}`)
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	rec, err := json.Marshal(idempotencyRecord{Status: statusProcessing, RequestHash: requestHash(r, body)})
	require.NoError(t, err)
	rdb.data["idempotency:alice:k"] = string(rec)

	h := Idempotency(rdb, time.Hour, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the key is in progress")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, idempotentRequest(`{"a":1}`))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, codeRequestInProgress, decode[model.ErrorResponse](t, w).Code)
}

func TestIdempotency_FailsOpen(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	calls := 0
	h := Idempotency(rdb, time.Hour, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, idempotentRequest(`{}`))
		assert.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_IgnoresReadsAndMissingKey(t *testing.T) {
	rdb := newFakeRedis()
	h := Idempotency(rdb, time.Hour, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	get := httptest.NewRequest(http.MethodGet, "/things", nil)
	get.Header.Set(IdempotencyKeyHeader, "k")
	h.ServeHTTP(httptest.NewRecorder(), get)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(`{}`)))
	assert.Empty(t, rdb.keys())
}
