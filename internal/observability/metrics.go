// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	SupplyTokens   *prometheus.GaugeVec

	// Mining metrics
	MineAttempts       *prometheus.CounterVec
	BlocksAccepted     *prometheus.CounterVec
	Retargets          *prometheus.CounterVec
	DifficultyZeroBits *prometheus.GaugeVec
	BlockHeight        *prometheus.GaugeVec

	// Notification metrics
	EventsPublished  *prometheus.CounterVec
	WSClients        prometheus.Gauge
	NotifierFailures *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "powtoken"
	}

	return &Metrics{
		// Ledger metrics
		ActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "actions_total",
			Help:      "Total number of ledger actions by action and outcome",
		}, []string{"action", "outcome"}),
		ActionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "action_duration_seconds",
			Help:      "Ledger action latency in seconds, including commit",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		SupplyTokens: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "supply_tokens",
			Help:      "Circulating supply per symbol in whole tokens",
		}, []string{"symbol"}),

		// Mining metrics
		MineAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "attempts_total",
			Help:      "Total number of submitted solutions by symbol and outcome",
		}, []string{"symbol", "outcome"}),
		BlocksAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "blocks_accepted_total",
			Help:      "Total number of accepted solutions per symbol",
		}, []string{"symbol"}),
		Retargets: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "retargets_total",
			Help:      "Total number of difficulty adjustments per symbol and direction",
		}, []string{"symbol", "direction"}),
		DifficultyZeroBits: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "difficulty_leading_zero_bits",
			Help:      "Leading zero bits of the current target per symbol",
		}, []string{"symbol"}),
		BlockHeight: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "block_height",
			Help:      "Current block height per symbol",
		}, []string{"symbol"}),

		// Notification metrics
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_published_total",
			Help:      "Total number of ledger events published by kind",
		}, []string{"kind"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "websocket_clients",
			Help:      "Number of connected websocket subscribers",
		}),
		NotifierFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Total number of notifier delivery failures by notifier",
		}, []string{"notifier"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAction records one ledger action outcome and its latency.
func RecordAction(action, outcome string, seconds float64) {
	DefaultMetrics.ActionsTotal.WithLabelValues(action, outcome).Inc()
	DefaultMetrics.ActionDuration.WithLabelValues(action).Observe(seconds)
}

// UpdateSupply sets the supply gauge for a symbol.
func UpdateSupply(symbol string, tokens float64) {
	DefaultMetrics.SupplyTokens.WithLabelValues(symbol).Set(tokens)
}

// RecordMineAttempt records a submitted solution outcome.
func RecordMineAttempt(symbol, outcome string) {
	DefaultMetrics.MineAttempts.WithLabelValues(symbol, outcome).Inc()
}

// RecordBlockAccepted records an accepted solution and the resulting chain state.
func RecordBlockAccepted(symbol string, height uint64, zeroBits int) {
	DefaultMetrics.BlocksAccepted.WithLabelValues(symbol).Inc()
	DefaultMetrics.BlockHeight.WithLabelValues(symbol).Set(float64(height))
	DefaultMetrics.DifficultyZeroBits.WithLabelValues(symbol).Set(float64(zeroBits))
}

// RecordRetarget records a difficulty adjustment. direction is "easier", "harder" or "unchanged".
func RecordRetarget(symbol, direction string) {
	DefaultMetrics.Retargets.WithLabelValues(symbol, direction).Inc()
}

// RecordEventPublished increments the published events counter.
func RecordEventPublished(kind string) {
	DefaultMetrics.EventsPublished.WithLabelValues(kind).Inc()
}

// RecordNotifierFailure increments the failure counter of a notifier.
func RecordNotifierFailure(notifier string) {
	DefaultMetrics.NotifierFailures.WithLabelValues(notifier).Inc()
}

// UpdateWSClients sets the websocket subscriber gauge.
func UpdateWSClients(n int) {
	DefaultMetrics.WSClients.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
