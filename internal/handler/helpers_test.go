package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/gateway"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/service"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/testutil"
)

const testJWTSecret = "handler-test-secret"

type testServer struct {
	handler http.Handler
	core    *service.Core
	store   *testutil.MemStore
}

type serverOption func(*RouterConfig)

func withRedis(c RedisClient) serverOption {
	return func(cfg *RouterConfig) { cfg.Redis = c }
}

func withParser(p WebhookParser) serverOption {
	return func(cfg *RouterConfig) { cfg.Webhooks = p }
}

func newTestServer(t *testing.T, gw gateway.Gateway, opts ...serverOption) *testServer {
	t.Helper()
	if gw == nil {
		gw = gateway.NewMockGateway(nil)
	}
	store := testutil.NewMemStore()
	core := service.NewCore(store, gw, service.Options{})
	cfg := RouterConfig{
		Core:           core,
		Webhooks:       &stubParser{},
		Tokens:         NewTokenVerifier(testJWTSecret, ""),
		AllowedOrigins: []string{"https://app.example.com"},
		ServiceName:    "event-rsvp-test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &testServer{handler: NewRouter(cfg), core: core, store: store}
}

func signToken(t *testing.T, subject string, admin bool) string {
	t.Helper()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

type request struct {
	method string
	path   string
	token  string
	body   any
	header map[string]string
}

func (s *testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := req.body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	r := httptest.NewRequest(req.method, req.path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

// createEvent creates an event owned by "organiser" through the API.
func (s *testServer) createEvent(t *testing.T, body map[string]any) model.Event {
	t.Helper()
	if _, ok := body["starts_at"]; !ok {
		body["starts_at"] = time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	}
	w := s.do(t, request{method: http.MethodPost, path: "/events", token: signToken(t, "organiser", false), body: body})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ev model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ev))
	return ev
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type stubParser struct {
	evt *model.WebhookEvent
	err error
}

func (p *stubParser) Parse([]byte, string) (*model.WebhookEvent, error) {
	return p.evt, p.err
}

type stubApplier struct {
	err  error
	seen []*model.WebhookEvent
}

func (a *stubApplier) HandleWebhook(_ context.Context, evt *model.WebhookEvent) error {
	a.seen = append(a.seen, evt)
	return a.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// fakeRedis is an in-memory RedisClient.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.data))
	for k := range f.data {
		out = append(out, k)
	}
	return out
}
