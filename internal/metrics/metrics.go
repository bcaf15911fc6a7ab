package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	lifecycleOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxybot_lifecycle_operations_total",
		Help: "Total number of proxy lifecycle operations by operation and result",
	}, []string{"operation", "result"})
	controlPlaneRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxybot_npm_request_duration_seconds",
		Help:    "Latency of control-plane API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
	ledgerPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxybot_ledger_pruned_total",
		Help: "Total number of ledger entries pruned because the remote proxy was gone",
	})
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxybot_commands_total",
		Help: "Total number of chat commands handled",
	}, []string{"command"})
	httpPanicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proxybot_http_panics_total",
		Help: "Total number of recovered HTTP handler panics",
	})
)

// Register registers Prometheus collectors. Call once per registry.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(lifecycleOperationsTotal, controlPlaneRequestDuration, ledgerPrunedTotal, commandsTotal, httpPanicsTotal)
}

// IncLifecycle counts one lifecycle operation outcome.
func IncLifecycle(operation, result string) {
	lifecycleOperationsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveControlPlaneRequest records a control-plane call. status is 0 when
// no response was received.
func ObserveControlPlaneRequest(method string, status int, d time.Duration) {
	controlPlaneRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// AddLedgerPruned counts pruned ledger entries.
func AddLedgerPruned(n int) { ledgerPrunedTotal.Add(float64(n)) }

// IncCommand counts a dispatched chat command.
func IncCommand(name string) { commandsTotal.WithLabelValues(name).Inc() }

// IncHTTPPanic counts a panic recovered by the HTTP middleware.
func IncHTTPPanic() { httpPanicsTotal.Inc() }
