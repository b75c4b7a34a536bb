// Package metrics holds the Prometheus instruments for the accounts
// server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles all instruments so handlers and services share one
// registration point.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	UsersCreated        prometheus.Counter
	SessionsResumed     prometheus.Counter
	SessionsInvalidated prometheus.Counter
	ResumeDuration      prometheus.Histogram
}

// New registers all metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers against an explicit registerer so tests can use a
// private registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_logins_total",
			Help: "Login attempts by identity service and outcome",
		}, []string{"service", "outcome"}),
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "accounts_users_created_total",
			Help: "Total number of users created",
		}),
		SessionsResumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "accounts_sessions_resumed_total",
			Help: "Successful session resumptions",
		}),
		SessionsInvalidated: factory.NewCounter(prometheus.CounterOpts{
			Name: "accounts_sessions_invalidated_total",
			Help: "Sessions invalidated through logout",
		}),
		ResumeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounts_resume_session_duration_ms",
			Help:    "Latency of session resumption in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}),
	}
}

// RecordLogin counts one login attempt outcome for a service.
func (m *Metrics) RecordLogin(service, outcome string) {
	m.LoginsTotal.WithLabelValues(service, outcome).Inc()
}
