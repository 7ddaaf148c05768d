package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	CarrierErrors    *prometheus.CounterVec
	TokenRefreshes   *prometheus.CounterVec
	TokenRefreshTime *prometheus.HistogramVec
	QuotesReturned   *prometheus.HistogramVec
}

// NewMetrics creates metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratebridge_requests_total",
				Help: "Total number of requests by operation, carrier, and status",
			},
			[]string{"operation", "carrier", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratebridge_request_duration_seconds",
				Help:    "Request duration in seconds by operation and carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratebridge_carrier_errors_total",
				Help: "Total carrier errors by carrier and error kind",
			},
			[]string{"carrier", "error_kind"},
		),
		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratebridge_token_refreshes_total",
				Help: "OAuth token refreshes by carrier and outcome",
			},
			[]string{"carrier", "status"},
		),
		TokenRefreshTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratebridge_token_refresh_duration_seconds",
				Help:    "OAuth token refresh duration in seconds by carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"carrier"},
		),
		QuotesReturned: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratebridge_quotes_returned",
				Help:    "Number of quotes in a successful rate result by carrier",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
			[]string{"carrier"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, carrier, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, carrier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, carrier).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(carrier, errorKind string) {
	m.CarrierErrors.WithLabelValues(carrier, errorKind).Inc()
}

// RecordQuotes records how many quotes a carrier returned.
func (m *Metrics) RecordQuotes(carrier string, n int) {
	m.QuotesReturned.WithLabelValues(carrier).Observe(float64(n))
}

// TokenRefreshObserver returns a hook suitable for oauth.Config.OnRefresh.
func (m *Metrics) TokenRefreshObserver(carrier string) func(time.Duration, error) {
	return func(d time.Duration, err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.TokenRefreshes.WithLabelValues(carrier, status).Inc()
		m.TokenRefreshTime.WithLabelValues(carrier).Observe(d.Seconds())
	}
}
