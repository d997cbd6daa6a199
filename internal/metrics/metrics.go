package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Ledger
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transactions_total",
			Help: "Transaction records finalized, by type and terminal status",
		},
		[]string{"type", "status"}, // transfer|add_funds|admin_adjust, completed|failed
	)
	TransferFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transfer_failures_total",
			Help: "Rejected or rolled back transfers by error code",
		},
		[]string{"reason"},
	)
	FeesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_fees_collected_minor_total",
			Help: "Transfer fees collected, in minor units",
		},
	)
	ReconciliationAlerts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_reconciliation_alerts_total",
			Help: "Compensations that could not be applied and need manual reconciliation",
		},
	)
	LockWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_lock_wait_seconds",
			Help:    "Time spent waiting for wallet locks",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2, 5},
		},
		[]string{"outcome"}, // acquired|timeout|canceled
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_events_published_total",
			Help: "Ledger events handed to publishers",
		},
		[]string{"sink", "result"},
	)

	initOnce sync.Once
)

// Handler serves /metrics.
var Handler = promhttp.Handler

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			TransactionsTotal,
			TransferFailures,
			FeesCollected,
			ReconciliationAlerts,
			LockWait,
			WorkerQueueDepth,
			EventsPublished,
		)
	})
}
