package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/ehr/patient360/internal/config"
	"github.com/ehr/patient360/internal/domain/customer"
	"github.com/ehr/patient360/internal/domain/dashboard"
	"github.com/ehr/patient360/internal/platform/db"
	"github.com/ehr/patient360/internal/platform/middleware"
	"github.com/ehr/patient360/internal/platform/sandbox"
	"github.com/ehr/patient360/internal/platform/telemetry"
	"github.com/ehr/patient360/internal/platform/websocket"
)

const (
	serviceName = "patient360"
	version     = "0.1.0"
)

// deps are the data sources a server or inspect run reads from.
type deps struct {
	backend customer.Backend
	pool    *pgxpool.Pool
	sandbox *sandbox.Backend
}

func (d *deps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// openBackend connects the backend named by cfg.Backend.
func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*deps, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Msg("connected to database")
		return &deps{backend: customer.NewRepoPG(pool), pool: pool}, nil
	case config.BackendSandbox:
		sb := sandbox.NewBackend(sandbox.SeedConfig{
			Seed:        cfg.SandboxSeed,
			Customers:   cfg.SandboxCustomers,
			Latency:     cfg.SandboxLatency,
			FailureRate: cfg.SandboxFailureRate,
		}, logger.With().Str("component", "sandbox").Logger())
		logger.Info().Int("customers", cfg.SandboxCustomers).Str("demo_reference", sandbox.DemoReference).Msg("using sandbox backend")
		return &deps{backend: sb, sandbox: sb}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// newEngineFactory validates the dashboard options in cfg once and returns a
// factory building engines with them. Each engine gets its own formatter.
func newEngineFactory(cfg *config.Config, backend customer.Backend, logger zerolog.Logger, rec dashboard.Recorder) (dashboard.Factory, error) {
	feeds, err := dashboard.ParseFeeds(cfg.EnabledFeeds)
	if err != nil {
		return nil, err
	}
	expansion, err := dashboard.ParseExpansionPolicy(cfg.ExpansionPolicy)
	if err != nil {
		return nil, err
	}
	mode, err := dashboard.ParseResolutionMode(cfg.ResolutionMode)
	if err != nil {
		return nil, err
	}
	if _, err := dashboard.NewFormatter(cfg.Locale, cfg.Currency, cfg.DateLayout, nil); err != nil {
		return nil, err
	}

	engineLog := logger.With().Str("component", "dashboard").Logger()
	return func() (*dashboard.Engine, error) {
		f, err := dashboard.NewFormatter(cfg.Locale, cfg.Currency, cfg.DateLayout, nil)
		if err != nil {
			return nil, err
		}
		return dashboard.New(backend, dashboard.Options{
			ItemsPerPage: cfg.ItemsPerPage,
			Expansion:    expansion,
			Mode:         mode,
			FeedTimeout:  cfg.FeedTimeout,
			Feeds:        feeds,
			Formatter:    f,
			Logger:       engineLog,
			Recorder:     rec,
		})
	}, nil
}

// newServer builds the Echo instance with middleware and routes.
func newServer(cfg *config.Config, logger zerolog.Logger, d *deps, metrics *telemetry.Provider, reg *dashboard.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.TracingMiddleware(otel.Tracer(serviceName + "/http")))
	e.Use(metrics.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "If-None-Match", middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/metrics"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"version":  version,
			"backend":  cfg.Backend,
			"sessions": reg.Len(),
		})
	})
	if d.pool != nil {
		e.GET("/health/db", db.HealthHandler(d.pool))
	}
	e.GET("/metrics", metrics.Handler())

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	rateLimit := middleware.RateLimit(rateLimitCfg)
	apiV1 := e.Group("/api/v1", rateLimit, middleware.ETag())

	dashboard.NewHandler(reg).RegisterRoutes(apiV1)

	// Live updates bypass the ETag buffer, which cannot be hijacked.
	hub := websocket.NewHub(logger.With().Str("component", "websocket").Logger())
	wireLiveUpdates(reg, hub)
	live := websocket.NewHandler(hub, sessionSource(reg), "id", cfg.CORSOrigins)
	e.GET("/api/v1/dashboards/:id/live", live.HandleConnect, rateLimit)
	if d.sandbox != nil && cfg.IsDev() {
		sandbox.NewSeedHandler(d.sandbox).RegisterRoutes(apiV1.Group("/sandbox"))
	}

	return e
}

// wireLiveUpdates pushes a session's snapshot to its websocket followers
// after every feed result and disconnects them when the session ends.
func wireLiveUpdates(reg *dashboard.Registry, hub *websocket.Hub) {
	reg.OnChange(func(id uuid.UUID, e *dashboard.Engine) {
		topic := id.String()
		if hub.TopicCount(topic) == 0 {
			return
		}
		hub.Publish(topic, websocket.EventSnapshot, dashboard.SessionResponse{ID: id, Snapshot: e.Snapshot()})
	})
	reg.OnClose(func(id uuid.UUID) {
		hub.CloseTopic(id.String())
	})
}

func sessionSource(reg *dashboard.Registry) websocket.Source {
	return func(topic string) (any, bool) {
		id, err := uuid.Parse(topic)
		if err != nil {
			return nil, false
		}
		e, err := reg.Get(id)
		if err != nil {
			return nil, false
		}
		return dashboard.SessionResponse{ID: id, Snapshot: e.Snapshot()}, true
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	d, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	metrics := telemetry.NewProvider()
	if d.pool != nil {
		metrics.RegisterPool(d.pool)
	}

	factory, err := newEngineFactory(cfg, d.backend, logger, metrics)
	if err != nil {
		return fmt.Errorf("dashboard options: %w", err)
	}
	reg := dashboard.NewRegistry(cfg.MaxSessions, cfg.SessionTTL, factory, metrics)
	defer reg.Close()

	e := newServer(cfg, logger, d, metrics, reg)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.Backend).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
