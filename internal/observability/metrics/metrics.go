// Package metrics provides Prometheus instrumentation for CleanFi.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled      bool
	serviceName  string
	registerOnce sync.Once

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Action metrics
	actionRequestsTotal *prometheus.CounterVec
	transactionsBuilt   *prometheus.CounterVec

	// Cleanup metrics
	cleanupLookupTotal *prometheus.CounterVec
	rpcDuration        *prometheus.HistogramVec

	// Leaderboard metrics
	leaderboardUpdateTotal *prometheus.CounterVec
)

// Init initializes the metrics system. Collectors are registered once per
// process; later calls only toggle collection.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}
	registerOnce.Do(register)
}

func register() {

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Action request counter, one per verb and outcome
	actionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_requests_total",
			Help: "Total number of action requests",
		},
		[]string{"action", "method", "status"},
	)

	// Unsigned transactions handed out
	transactionsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_transactions_built_total",
			Help: "Total number of unsigned transactions built",
		},
		[]string{"action", "chain_id"},
	)

	cleanupLookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_lookup_total",
			Help: "Total number of cleanup lookups",
		},
		[]string{"result"},
	)

	rpcDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_rpc_duration_seconds",
			Help:    "JSON-RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	leaderboardUpdateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_update_total",
			Help: "Total number of leaderboard upserts",
		},
		[]string{"status"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
