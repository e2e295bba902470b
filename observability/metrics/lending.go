package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks the outcome of lending engine operations and the
// aggregate platform balance.
type LendingMetrics struct {
	operations      *prometheus.CounterVec
	eventsEmitted   *prometheus.CounterVec
	platformBalance prometheus.Gauge
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the metrics registry for the lending module.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanledger",
				Subsystem: "lending",
				Name:      "operations_total",
				Help:      "Count of lending engine operations by operation and result.",
			}, []string{"op", "result"}),
			eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanledger",
				Subsystem: "lending",
				Name:      "events_total",
				Help:      "Count of structured lending events by type.",
			}, []string{"type"}),
			platformBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "loanledger",
				Subsystem: "lending",
				Name:      "platform_balance",
				Help:      "Aggregate loan-asset balance held by the platform.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.eventsEmitted,
			lendingRegistry.platformBalance,
		)
	})
	return lendingRegistry
}

// RecordOperation increments the counter for one engine call outcome.
func (m *LendingMetrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// RecordEvent increments the counter for an emitted event type.
func (m *LendingMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

// SetPlatformBalance records the aggregate loan-asset balance. Balances
// beyond float precision saturate rather than fail.
func (m *LendingMetrics) SetPlatformBalance(balance *big.Int) {
	if m == nil || balance == nil {
		return
	}
	value, _ := new(big.Float).SetInt(balance).Float64()
	m.platformBalance.Set(value)
}
