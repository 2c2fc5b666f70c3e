package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Prometheus Metrics ─────────────────────────────────────────────────────
// Exposed via the API server's /metrics endpoint when metrics are enabled.

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budgetpool_ledger_operations_total",
		Help: "Ledger operations by operation and outcome.",
	}, []string{"op", "outcome"})

	casRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budgetpool_ledger_cas_retries_total",
		Help: "Read-check-append cycles repeated after a store CAS conflict.",
	}, []string{"op"})

	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "budgetpool_ledger_operation_seconds",
		Help:    "Wall time of ledger mutations, lock wait and retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)
