package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records calls to external providers (payments, OTP, geocoding).
type GatewayMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agri_gateway_calls_total",
		Help: "External gateway calls by provider, operation and outcome.",
	}, []string{"provider", "op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agri_gateway_call_duration_seconds",
		Help:    "Latency of external gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "op"})
	reg.MustRegister(calls, duration)
	return &GatewayMetrics{calls: calls, duration: duration}
}

// Observe records one call. A nil error counts as "ok".
func (g *GatewayMetrics) Observe(provider, op string, elapsed time.Duration, err error) {
	if g == nil || g.calls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.calls.WithLabelValues(normalizeLabel(provider), normalizeLabel(op), outcome).Inc()
	g.duration.WithLabelValues(normalizeLabel(provider), normalizeLabel(op)).Observe(elapsed.Seconds())
}
