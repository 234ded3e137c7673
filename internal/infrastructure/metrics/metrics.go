package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillexchange_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillexchange_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	// LedgerOperations counts committed and failed ledger mutations by kind.
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillexchange_ledger_operations_total",
		Help: "Ledger mutations by type and outcome",
	}, []string{"type", "outcome"})

	LedgerCoinsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillexchange_ledger_coins_total",
		Help: "SkillCoins moved by committed ledger mutations",
	}, []string{"type"})

	// BalanceDriftUsers is the number of users whose balance disagrees with their history
	// at the last audit.
	BalanceDriftUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skillexchange_ledger_balance_drift_users",
		Help: "Users whose stored balance differs from the net of their transactions",
	})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillexchange_outbox_messages_total",
		Help: "Outbox messages handled by the sender, by result",
	}, []string{"result"})
)

// ObserveLedger records the outcome of one ledger mutation.
func ObserveLedger(txType string, amount int64, err error) {
	if err != nil {
		LedgerOperations.WithLabelValues(txType, "failed").Inc()
		return
	}
	LedgerOperations.WithLabelValues(txType, "committed").Inc()
	if amount < 0 {
		amount = -amount
	}
	LedgerCoinsMoved.WithLabelValues(txType).Add(float64(amount))
}
