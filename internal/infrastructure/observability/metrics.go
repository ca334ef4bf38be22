// Package observability registers the prometheus instruments for the
// checkout pipeline and the backend client.
package observability

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	CheckoutTransitions *prometheus.CounterVec
	CheckoutSubmits     *prometheus.CounterVec
	BackendRequests     *prometheus.CounterVec
	BackendDuration     *prometheus.HistogramVec
	TokenRefreshes      *prometheus.CounterVec
}

// NewMetrics builds and registers the metric vectors on reg. Tests pass
// their own registry; main passes prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CheckoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_transitions_total",
			Help: "Checkout step transitions.",
		}, []string{"from", "to"}),
		CheckoutSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_submit_total",
			Help: "Order submission attempts by outcome.",
		}, []string{"outcome"}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Requests issued to the storefront backend.",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Latency of storefront backend requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Credential refresh attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.CheckoutTransitions,
		m.CheckoutSubmits,
		m.BackendRequests,
		m.BackendDuration,
		m.TokenRefreshes,
	)
	return m
}

// NopMetrics returns metrics bound to a throwaway registry, for tests
// and components constructed without telemetry.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
