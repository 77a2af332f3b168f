// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Saga 相关指标。outcome ∈ {completed, cancelled}。
var (
	SagaStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saga_started_total",
		Help: "Number of order sagas started.",
	})

	SagaFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_finished_total",
		Help: "Number of order sagas that reached a terminal step.",
	}, []string{"outcome"})

	// SagaRefundUnresolved 统计退款结果为失败、但 saga 仍按设计继续
	// 走 release+cancel 的次数。这类订单需要人工对账。
	SagaRefundUnresolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saga_refund_unresolved_total",
		Help: "Number of sagas cancelled while the payment refund remained unresolved.",
	})

	SagaEventDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_event_dropped_total",
		Help: "Result events dropped because no live saga exists or the step does not expect them.",
	}, []string{"reason"})

	SagaExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saga_expired_total",
		Help: "Sagas force-cancelled by the timeout watcher.",
	})
)

// 库存台账相关指标。
var (
	LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_ledger_ops_total",
		Help: "Inventory ledger mutations by type and result.",
	}, []string{"type", "result"})

	// ReservationClamped 统计 COMMIT 时 reservedQuantity 被截断到
	// quantity 的次数。截断行为保持与上游兼容，但必须可观测。
	ReservationClamped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservation_clamped_total",
		Help: "Times a commit clamped reservedQuantity down to the remaining quantity.",
	})

	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_version_conflict_total",
		Help: "Optimistic version conflicts on unlocked inventory writes.",
	})
)
