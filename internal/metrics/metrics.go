// Package metrics holds the Prometheus collectors of the clinic backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. Each instance registers on its own registry
// so tests can create as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	PaymentsRecorded     *prometheus.CounterVec
	CashDrawerFailures   prometheus.Counter
	SettlementsGenerated prometheus.Counter
	RequestDuration      *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PaymentsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Name:      "payments_recorded_total",
			Help:      "Payments applied to service records, by payment kind.",
		}, []string{"kind"}),
		CashDrawerFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "dental",
			Name:      "cash_drawer_failures_total",
			Help:      "Cash drawer updates that failed after the ledger update succeeded.",
		}),
		SettlementsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "dental",
			Name:      "settlements_generated_total",
			Help:      "Settlement reports generated.",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}
