package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Sandbox metrics
	Renders       *prometheus.CounterVec
	RenderTime    prometheus.Histogram
	ResolveErrors *prometheus.CounterVec
	GuestErrors   prometheus.Counter
	BridgeFetches *prometheus.CounterVec
	ViewsActive   prometheus.Gauge
}

// NewMetrics creates a metrics collector on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brandhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brandhub_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandhub_renders_total",
				Help: "Execution context loads by outcome",
			},
			[]string{"outcome"},
		),
		RenderTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "brandhub_render_duration_seconds",
				Help:    "Time from load start until the document is interactive",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		ResolveErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandhub_resolve_errors_total",
				Help: "Bundle resolution failures by kind",
			},
			[]string{"kind"},
		),
		GuestErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "brandhub_guest_errors_total",
				Help: "Exceptions and unhandled rejections raised by guest code",
			},
		),
		BridgeFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandhub_bridge_fetches_total",
				Help: "Guest fetches served by the host by outcome",
			},
			[]string{"outcome"},
		),
		ViewsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "brandhub_views_active",
				Help: "Number of open views",
			},
		),
	}
}

// Registry returns the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordRender records one execution host load.
func (m *Metrics) RecordRender(outcome string, duration time.Duration) {
	m.Renders.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.RenderTime.Observe(duration.Seconds())
	}
}

// RecordResolveError records a failed bundle lookup.
func (m *Metrics) RecordResolveError(kind string) {
	m.ResolveErrors.WithLabelValues(kind).Inc()
}

// RecordGuestError records an error raised inside an execution context.
func (m *Metrics) RecordGuestError() {
	m.GuestErrors.Inc()
}

// RecordBridgeFetch records a guest fetch outcome ("ok", "error", "blocked").
func (m *Metrics) RecordBridgeFetch(outcome string) {
	m.BridgeFetches.WithLabelValues(outcome).Inc()
}

// SetViewsActive sets the number of open views
func (m *Metrics) SetViewsActive(count int) {
	m.ViewsActive.Set(float64(count))
}
