// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing for
// the dashboard server.
package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "patient360"

var defaultDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Provider owns the metric collectors of one server. Each provider registers
// on its own registry so tests can build as many as they need.
type Provider struct {
	reg *prometheus.Registry

	feedResults  *prometheus.CounterVec
	feedDuration *prometheus.HistogramVec
	sessions     prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpActive   prometheus.Gauge
}

// NewProvider creates the collectors and registers them together with the
// Go runtime and process collectors.
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Provider{
		reg: reg,
		feedResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_results_total",
			Help:      "Completed feed fetches by feed and outcome.",
		}, []string{"feed", "outcome"}),
		feedDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_duration_seconds",
			Help:      "Feed fetch latency.",
			Buckets:   defaultDurationBuckets,
		}, []string{"feed"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_sessions_active",
			Help:      "Open dashboard sessions.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   defaultDurationBuckets,
		}, []string{"method", "route"}),
		httpActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
	}
}

// Registry returns the registry backing the provider.
func (p *Provider) Registry() *prometheus.Registry { return p.reg }

// FeedCompleted records one finished fetch. Stale results are counted but
// their latency is not observed.
func (p *Provider) FeedCompleted(feed, outcome string, d time.Duration) {
	p.feedResults.WithLabelValues(feed, outcome).Inc()
	if outcome != "stale" {
		p.feedDuration.WithLabelValues(feed).Observe(d.Seconds())
	}
}

// SessionsActive sets the open session gauge.
func (p *Provider) SessionsActive(n int) {
	p.sessions.Set(float64(n))
}

// RegisterPool exposes pgx pool statistics as gauges.
func (p *Provider) RegisterPool(pool *pgxpool.Pool) {
	f := promauto.With(p.reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_pool_acquired_connections",
		Help:      "Connections currently in use.",
	}, func() float64 { return float64(pool.Stat().AcquiredConns()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_pool_idle_connections",
		Help:      "Idle connections in the pool.",
	}, func() float64 { return float64(pool.Stat().IdleConns()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_pool_total_connections",
		Help:      "Total connections in the pool.",
	}, func() float64 { return float64(pool.Stat().TotalConns()) })
}

// MetricsMiddleware records request count, latency and in-flight requests.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p.httpActive.Inc()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			p.httpActive.Dec()
			route := routeOf(c)
			method := c.Request().Method
			p.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			p.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			return nil
		}
	}
}

// Handler serves the registry in Prometheus text format.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{}))
}

// TracingMiddleware starts a server span per request and propagates the
// incoming trace context.
func TracingMiddleware(tracer trace.Tracer) echo.MiddlewareFunc {
	prop := otel.GetTextMapPropagator()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := prop.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := tracer.Start(ctx, "HTTP "+req.Method+" "+routeOf(c),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", routeOf(c)),
				))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, strconv.Itoa(status))
			}
			return nil
		}
	}
}

// SetupTracing installs a global tracer provider exporting to the OTLP/HTTP
// endpoint. An empty endpoint leaves the no-op provider in place.
func SetupTracing(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}
	tp := NewTracerProvider(serviceName, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// NewTracerProvider builds an always-sampling SDK provider tagged with the
// service name.
func NewTracerProvider(serviceName string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}, opts...)
	return sdktrace.NewTracerProvider(opts...)
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
