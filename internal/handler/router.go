package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/service"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/telemetry"
)

// RouterConfig carries everything the HTTP layer is built from.
type RouterConfig struct {
	Core           *service.Core
	Webhooks       WebhookParser
	Tokens         *TokenVerifier
	Redis          RedisClient // nil disables Idempotency-Key support
	IdempotencyTTL time.Duration
	AllowedOrigins []string
	ServiceName    string
	DB             Pinger
	Logger         *zap.Logger
}

// NewRouter builds the chi router with the global middleware stack and all routes.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	events := NewEventHandler(cfg.Core, log)
	webhooks := NewWebhookHandler(cfg.Webhooks, cfg.Core.Payments, log.Named("webhooks"))

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For

	r.Use(telemetry.Middleware(cfg.ServiceName))
	r.Use(Logger(log.Named("http")))
	r.Use(CORS(cfg.AllowedOrigins))

	// Health
	r.Get("/health", HealthCheck(cfg.DB))

	// Gateway webhooks authenticate by signature, not bearer token.
	r.Post("/webhooks/stripe", webhooks.Stripe)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Tokens))
		if cfg.Redis != nil {
			r.Use(Idempotency(cfg.Redis, cfg.IdempotencyTTL, log.Named("idempotency")))
		}

		r.Route("/events", func(r chi.Router) {
			r.Post("/", events.CreateEvent)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", events.GetEvent)
				r.Delete("/", events.DeleteEvent)

				r.Get("/reservations", events.ListReservations)
				r.Post("/reservations", events.Reserve)
				r.Delete("/reservations", events.Cancel)
				r.Post("/reservations/checkout", events.Checkout)
				r.Delete("/reservations/{userID}", events.CancelAttendee)

				r.Get("/blocks", events.ListBlocks)
				r.Put("/blocks/{userID}", events.Block)
				r.Delete("/blocks/{userID}", events.Unblock)

				r.Get("/cancellations", events.ListCancellations)
			})
		})

		r.Route("/cancellations/{id}", func(r chi.Router) {
			r.Get("/", events.GetCancellation)
			r.Post("/refund", events.Refund)
			r.Post("/refund/reconcile", events.ReconcileRefund)
		})
	})

	return r
}
