package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	stageDuration *prometheus.HistogramVec
	verdicts      *prometheus.CounterVec
	matched       prometheus.Histogram
	rateLimited   prometheus.Counter
}

// NewMetrics registers collectors on reg. Passing a fresh registry keeps
// tests isolated.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mombo_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mombo_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		requestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "mombo_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mombo_analysis_stage_duration_seconds",
				Help:    "Duration of each analysis pipeline stage",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage", "outcome"},
		),
		verdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mombo_analysis_verdicts_total",
				Help: "Completed analyses by risk level",
			},
			[]string{"risk_level"},
		),
		matched: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mombo_analysis_matched_ingredients",
			Help:    "Dictionary matches per analysis",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "mombo_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

// Middleware records count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveStage records one pipeline stage. Outcome is the error class.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage, outcome(err)).Observe(d.Seconds())
}

func (m *Metrics) ObserveVerdict(level analysis.RiskLevel, matched int) {
	m.verdicts.WithLabelValues(string(level)).Inc()
	m.matched.Observe(float64(matched))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, analysis.ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, analysis.ErrOCRService):
		return "ocr_error"
	case errors.Is(err, analysis.ErrNormalizationService):
		return "normalization_error"
	case errors.Is(err, analysis.ErrDictionary):
		return "dictionary_error"
	case errors.Is(err, analysis.ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}
