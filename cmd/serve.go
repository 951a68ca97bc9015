package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/clock"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/config"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/database"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/gateway"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/handler"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/logger"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/repository"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/service"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			skipMigrate, _ := cmd.Flags().GetBool("skip-migrate")

			log, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, !skipMigrate, log)
		},
	}

	cmd.Flags().IntP("port", "p", 0, "HTTP port (overrides server.port)")
	cmd.Flags().Bool("skip-migrate", false, "Do not apply migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool, log *zap.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	if migrate {
		applied, err := database.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		log.Info("migrations applied", zap.Int("count", len(applied)))
	}

	// ── 2. Optional Redis for Idempotency-Key replay ──────────────────────
	var idem handler.RedisClient
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		idem = rdb
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	gw, err := newGateway(cfg.Payment)
	if err != nil {
		return err
	}
	store := repository.NewStore(pool, cfg.Database.TxRetries)
	core := service.NewCore(store, gw, service.Options{
		Clock:          clock.System{},
		Logger:         log,
		GatewayTimeout: cfg.Payment.Timeout,
		AllowSelfBlock: cfg.Rules.AllowSelfBlock,
	})

	router := handler.NewRouter(handler.RouterConfig{
		Core:           core,
		Webhooks:       gateway.NewWebhookVerifier(cfg.Payment.WebhookSecret),
		Tokens:         handler.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		Redis:          idem,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ServiceName:    cfg.App.Name,
		DB:             store,
		Logger:         log,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("gateway", gw.Name()),
			zap.Bool("idempotency", idem != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func newGateway(cfg config.PaymentConfig) (gateway.Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		return gateway.NewStripeGateway(&gateway.StripeConfig{
			SecretKey:  cfg.SecretKey,
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
			Timeout:    cfg.Timeout,
		})
	case "mock":
		return gateway.NewMockGateway(nil), nil
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
}
