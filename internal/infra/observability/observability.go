// Package observability exposes the engine's Prometheus metrics.
//
// Gauges mirror the latest snapshot; counters track commands, accrual and
// persistence. Everything registers on the default registry via promauto so
// the API's /metrics handler serves it without extra wiring.
package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

const namespace = "shuffle"

// ─── Ledger Gauges ──────────────────────────────────────────────────────────

// Balance is the current spendable balance.
var Balance = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "balance",
	Help:      "Current spendable shuffle points.",
})

// TotalProduced is the lifetime production counter.
var TotalProduced = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "total_produced",
	Help:      "Shuffle points produced since the last reset.",
})

// ActionRate is the per-action production rate.
var ActionRate = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "production",
	Name:      "per_action",
	Help:      "Shuffle points granted per manual action.",
})

// SecondRate is the per-second generator rate.
var SecondRate = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "production",
	Name:      "per_second",
	Help:      "Shuffle points accrued per second by generators.",
})

// ItemLevel tracks each item's level.
var ItemLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "catalog",
	Name:      "item_level",
	Help:      "Current level of each catalog item.",
}, []string{"item"})

// ─── Command Metrics ────────────────────────────────────────────────────────

// Actions counts manual actions.
var Actions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "commands",
	Name:      "actions_total",
	Help:      "Total manual actions performed.",
})

// Purchases counts purchase attempts by item and outcome.
var Purchases = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "commands",
	Name:      "purchases_total",
	Help:      "Total purchase attempts by item and outcome.",
}, []string{"item", "outcome"})

// Resets counts full resets.
var Resets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "commands",
	Name:      "resets_total",
	Help:      "Total game resets.",
})

// ─── Accrual Metrics ────────────────────────────────────────────────────────

// AccrualTicks counts scheduler ticks.
var AccrualTicks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "accrual",
	Name:      "ticks_total",
	Help:      "Total accrual ticks processed.",
})

// Accrued sums resource granted by ticks.
var Accrued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "accrual",
	Name:      "granted_total",
	Help:      "Shuffle points granted by accrual ticks.",
})

// OfflineGained sums resource granted on load for time away.
var OfflineGained = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "accrual",
	Name:      "offline_granted_total",
	Help:      "Shuffle points granted for offline time.",
})

// ─── Persistence Metrics ────────────────────────────────────────────────────

// Saves counts snapshot writes by result.
var Saves = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "persistence",
	Name:      "saves_total",
	Help:      "Total snapshot saves by result.",
}, []string{"result"})

// SaveDuration tracks snapshot write latency.
var SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "persistence",
	Name:      "save_duration_ms",
	Help:      "Snapshot save latency in milliseconds.",
	Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
})

// Loads counts startup loads by result (fresh, restored, corrupt).
var Loads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "persistence",
	Name:      "loads_total",
	Help:      "Total snapshot loads by result.",
}, []string{"result"})

// ─── API Metrics ────────────────────────────────────────────────────────────

// StreamClients tracks connected snapshot stream clients.
var StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "api",
	Name:      "stream_clients",
	Help:      "Connected snapshot stream clients.",
})

// APIRequests counts HTTP requests by route and status.
var APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "api",
	Name:      "requests_total",
	Help:      "Total HTTP requests by route and status code.",
}, []string{"route", "code"})

// ─── Helpers ────────────────────────────────────────────────────────────────

// Outcome labels for Purchases.
const (
	OutcomeOK           = "ok"
	OutcomeInsufficient = "insufficient_funds"
	OutcomeMaxed        = "max_level"
	OutcomeUnknown      = "unknown_item"
	OutcomeError        = "error"
)

// Outcome maps a purchase error to its metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrInsufficientFunds):
		return OutcomeInsufficient
	case errors.Is(err, domain.ErrMaxLevelReached):
		return OutcomeMaxed
	case errors.Is(err, domain.ErrUnknownItem):
		return OutcomeUnknown
	default:
		return OutcomeError
	}
}

// ObserveSnapshot mirrors a snapshot into the ledger and production gauges.
func ObserveSnapshot(s domain.Snapshot) {
	Balance.Set(s.Balance)
	TotalProduced.Set(s.TotalProduced)
	ActionRate.Set(s.PerActionRate)
	SecondRate.Set(s.PerTimeUnitRate)
	for _, it := range s.Items {
		ItemLevel.WithLabelValues(it.Key).Set(float64(it.Level))
	}
}

// ObserveSave records one save attempt.
func ObserveSave(start time.Time, err error) {
	SaveDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		Saves.WithLabelValues("error").Inc()
		return
	}
	Saves.WithLabelValues("ok").Inc()
}
