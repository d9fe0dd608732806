package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for deliveries_total.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeAbandoned = "abandoned"
)

// Metrics stores Prometheus collectors used by the intake API and the retry
// engine.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	deliveriesTotal      *prometheus.CounterVec
	attemptsTotal        *prometheus.CounterVec
	failoversTotal       *prometheus.CounterVec
	sendDuration         *prometheus.HistogramVec
	deliveriesInFlight   prometheus.Gauge
	recoveryResumedTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "http_retryer",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "http_retryer",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "http_retryer",
				Name:      "deliveries_total",
				Help:      "Total number of delivery sequences by terminal outcome.",
			},
			[]string{"outcome"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "http_retryer",
				Name:      "delivery_attempts_total",
				Help:      "Total number of dispatch attempts by result.",
			},
			[]string{"result"},
		),
		failoversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "http_retryer",
				Name:      "failovers_total",
				Help:      "Total number of immediate failovers away from a receiver endpoint.",
			},
			[]string{"endpoint"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "http_retryer",
				Name:      "send_duration_seconds",
				Help:      "Receiver call duration in seconds grouped by endpoint.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"endpoint"},
		),
		deliveriesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "http_retryer",
				Name:      "deliveries_in_flight",
				Help:      "Current number of delivery sequences between start and terminal state.",
			},
		),
		recoveryResumedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "http_retryer",
				Name:      "recovery_resumed_total",
				Help:      "Total number of ledger records resumed by the startup recovery scan.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.deliveriesTotal,
		m.attemptsTotal,
		m.failoversTotal,
		m.sendDuration,
		m.deliveriesInFlight,
		m.recoveryResumedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDeliveryOutcome(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.deliveriesTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncAttempt(succeeded bool) {
	if m == nil {
		return
	}
	result := "failure"
	if succeeded {
		result = "success"
	}
	m.attemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncFailover(endpoint string) {
	if m == nil {
		return
	}
	m.failoversTotal.WithLabelValues(normalizeEndpoint(endpoint)).Inc()
}

func (m *Metrics) ObserveSendDuration(endpoint string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeEndpoint(endpoint)).Observe(seconds)
}

func (m *Metrics) IncDeliveryInFlight() {
	if m == nil {
		return
	}
	m.deliveriesInFlight.Inc()
}

func (m *Metrics) DecDeliveryInFlight() {
	if m == nil {
		return
	}
	m.deliveriesInFlight.Dec()
}

func (m *Metrics) IncRecoveryResumed() {
	if m == nil {
		return
	}
	m.recoveryResumedTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeEndpoint(endpoint string) string {
	normalized := strings.TrimSpace(endpoint)
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
