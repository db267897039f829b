package lending

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type operationMetrics struct {
	committed *prometheus.CounterVec
	aborted   *prometheus.CounterVec
}

var (
	operationMetricsOnce sync.Once
	operationRegistry    *operationMetrics
)

// OperationMetrics returns the lazily-initialised counters tracking
// settlement saga outcomes.
func OperationMetrics() *operationMetrics {
	operationMetricsOnce.Do(func() {
		operationRegistry = &operationMetrics{
			committed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendfi",
				Subsystem: "lending",
				Name:      "operations_committed_total",
				Help:      "Settlement operations committed, segmented by kind.",
			}, []string{"kind"}),
			aborted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendfi",
				Subsystem: "lending",
				Name:      "operations_aborted_total",
				Help:      "Settlement operations aborted, segmented by kind and reason.",
			}, []string{"kind", "reason"}),
		}
	})
	return operationRegistry
}

// Register attaches the counters to the provided registry, ignoring
// duplicate registration so multiple components can share one process.
func (m *operationMetrics) Register(reg prometheus.Registerer) {
	if m == nil || reg == nil {
		return
	}
	for _, collector := range []prometheus.Collector{m.committed, m.aborted} {
		if err := reg.Register(collector); err != nil {
			var dup prometheus.AlreadyRegisteredError
			if !errors.As(err, &dup) {
				panic(err)
			}
		}
	}
}

// ObserveCommit records a committed operation.
func (m *operationMetrics) ObserveCommit(kind string) {
	if m == nil {
		return
	}
	m.committed.WithLabelValues(kind).Inc()
}

// ObserveAbort records an aborted operation with its failure reason.
func (m *operationMetrics) ObserveAbort(kind, reason string) {
	if m == nil {
		return
	}
	m.aborted.WithLabelValues(kind, reason).Inc()
}

// reasonLabel collapses an abort error onto a bounded label set.
func reasonLabel(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, ErrActionPaused):
		return "action_paused"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, ErrMissingPrice):
		return "missing_price"
	case errors.Is(err, ErrBorrowNotAllowed):
		return "borrow_not_allowed"
	case errors.Is(err, ErrRemoteCallFailed):
		return "remote_call_failed"
	case errors.Is(err, ErrNoOutstandingDebt):
		return "no_outstanding_debt"
	case errors.Is(err, ErrUnknownMarket):
		return "unknown_market"
	case errors.Is(err, ErrOperationInFlight):
		return "operation_in_flight"
	case errors.Is(err, ErrInconsistentState):
		return "inconsistent_state"
	default:
		return "internal"
	}
}
