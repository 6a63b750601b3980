package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Account metrics
	AccountsCreated prometheus.Counter

	// Ledger metrics
	LedgerEntries     *prometheus.CounterVec
	EntryReplays      *prometheus.CounterVec
	InsufficientFunds prometheus.Counter
	EntryAmount       *prometheus.HistogramVec

	// Order metrics
	OrdersPlaced     prometheus.Counter
	OrderTransitions *prometheus.CounterVec
	OrderConflicts   *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec

	// Settlement metrics
	CreditRetries     prometheus.Counter
	CreditFailures    prometheus.Counter
	SettlementCredits prometheus.Counter

	// Gateway metrics
	ActiveWatchers *prometheus.GaugeVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailed    prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics and registers them on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "rideledger_accounts_created_total",
			Help: "Total number of wallets registered",
		}),

		LedgerEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rideledger_ledger_entries_total",
				Help: "Total number of ledger entries appended",
			},
			[]string{"kind"},
		),
		EntryReplays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rideledger_ledger_entry_replays_total",
				Help: "Idempotent applications that returned an existing entry",
			},
			[]string{"kind"},
		),
		InsufficientFunds: factory.NewCounter(prometheus.CounterOpts{
			Name: "rideledger_insufficient_funds_total",
			Help: "Debits rejected for insufficient balance",
		}),
		EntryAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rideledger_ledger_entry_amount",
				Help:    "Ledger entry amounts",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 500, 1000},
			},
			[]string{"kind"},
		),

		OrdersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "rideledger_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		OrderTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rideledger_order_transitions_total",
				Help: "Order status transitions by target status",
			},
			[]string{"status"},
		),
		OrderConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rideledger_order_conflicts_total",
				Help: "Compare-and-swap losses by operation",
			},
			[]string{"operation"},
		),
		OperationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rideledger_operation_duration_seconds",
				Help:    "Duration of coordinator operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		CreditRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "rideledger_earning_credit_retries_total",
			Help: "Retried earning credits after order completion",
		}),
		CreditFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "rideledger_earning_credit_failures_total",
			Help: "Earning credits left pending after retries were exhausted",
		}),
		SettlementCredits: factory.NewCounter(prometheus.CounterOpts{
			Name: "rideledger_settlement_credits_total",
			Help: "Earning credits applied by the settlement sweeper",
		}),

		ActiveWatchers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rideledger_active_watchers",
				Help: "Open watch streams",
			},
			[]string{"stream"},
		),

		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "rideledger_outbox_published_total",
			Help: "Outbox events published",
		}),
		OutboxFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rideledger_outbox_failed_total",
			Help: "Outbox events that failed to publish",
		}),
	}
}
