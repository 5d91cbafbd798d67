// Package metrics holds the Prometheus instruments of the auth flows.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/user-authenticator/internal/apperr"
)

// Flows records flow outcomes and bcrypt latency.
type Flows struct {
	registry *prometheus.Registry
	total    *prometheus.CounterVec
	hash     prometheus.Histogram
}

// New creates a dedicated registry with the Go and process collectors and
// the auth instruments.
func New() *Flows {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := &Flows{
		registry: reg,
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_flow_total",
				Help: "Total number of auth flows by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		hash: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auth_password_hash_seconds",
			Help:    "Duration of bcrypt hash and verify calls",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	reg.MustRegister(f.total, f.hash)
	return f
}

// ObserveFlow counts one flow. The outcome is "ok" or the error kind.
func (f *Flows) ObserveFlow(flow string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	f.total.WithLabelValues(flow, outcome).Inc()
}

// ObserveHash records one bcrypt computation.
func (f *Flows) ObserveHash(d time.Duration) {
	f.hash.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (f *Flows) Handler() http.Handler {
	return promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{Registry: f.registry})
}
