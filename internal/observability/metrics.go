package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	governanceRequestsTotal  *prometheus.CounterVec
	governanceLatencySeconds *prometheus.HistogramVec
	governanceErrorsTotal    *prometheus.CounterVec
	auditEntriesTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used for governance observability.
func RegisterMetrics() {
	registerOnce.Do(func() {
		governanceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_requests_total",
			Help: "Total number of governance API requests served.",
		}, []string{"method", "route", "status"})

		governanceLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "governance_latency_seconds",
			Help:    "Latency distribution for governance API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		governanceErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_errors_total",
			Help: "Total number of error responses returned by governance endpoints.",
		}, []string{"method", "route", "status"})

		auditEntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of ledger entries appended, by action kind.",
		}, []string{"action"})

		prometheus.MustRegister(governanceRequestsTotal, governanceLatencySeconds, governanceErrorsTotal, auditEntriesTotal)
	})
}

// GovernanceRequests exposes the counter for governance requests.
func GovernanceRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return governanceRequestsTotal
}

// GovernanceLatency exposes the latency histogram for governance requests.
func GovernanceLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return governanceLatencySeconds
}

// GovernanceErrors exposes the counter for governance error responses.
func GovernanceErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return governanceErrorsTotal
}

// AuditEntries exposes the counter for appended ledger entries.
func AuditEntries() *prometheus.CounterVec {
	RegisterMetrics()
	return auditEntriesTotal
}
