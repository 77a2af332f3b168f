// internal/service/order/domain/saga.go
package domain

import (
	"time"

	"github.com/pkg/errors"

	"meridian/internal/contracts"
)

// SagaStep 是编排器为一个订单维护的当前步骤。
// 正向链：STARTED -> INVENTORY_CHECKING -> INVENTORY_RESERVING ->
// PAYMENT_PROCESSING -> INVENTORY_COMMITTING -> COMPLETED。
// 补偿链从失败点进入：PAYMENT_REFUNDING -> INVENTORY_RELEASING -> CANCELLED。
type SagaStep string

const (
	StepStarted             SagaStep = "STARTED"
	StepInventoryChecking   SagaStep = "INVENTORY_CHECKING"
	StepInventoryReserving  SagaStep = "INVENTORY_RESERVING"
	StepPaymentProcessing   SagaStep = "PAYMENT_PROCESSING"
	StepInventoryCommitting SagaStep = "INVENTORY_COMMITTING"
	StepPaymentRefunding    SagaStep = "PAYMENT_REFUNDING"
	StepInventoryReleasing  SagaStep = "INVENTORY_RELEASING"
	StepCompleted           SagaStep = "COMPLETED"
	StepCancelled           SagaStep = "CANCELLED"
)

// Terminal 报告该步骤是否为终态。终态 saga 不再接受任何事件。
func (s SagaStep) Terminal() bool {
	return s == StepCompleted || s == StepCancelled
}

// EventKind 标识一条进入编排器的结果事件的种类。
type EventKind string

const (
	EventInventoryCheckResult   EventKind = "INVENTORY_CHECK_RESULT"
	EventInventoryReserveResult EventKind = "INVENTORY_RESERVE_RESULT"
	EventInventoryCommitResult  EventKind = "INVENTORY_COMMIT_RESULT"
	EventInventoryReleaseResult EventKind = "INVENTORY_RELEASE_RESULT"
	EventPaymentResult          EventKind = "PAYMENT_RESULT"
	EventPaymentRefundResult    EventKind = "PAYMENT_REFUND_RESULT"
)

// expectedEvent 是显式的步骤-事件相容表。
// 每个中间步骤恰好等待一种结果事件，其余事件一律是过期或错位的，
// 编排器应当丢弃并计数，而不是让它推动状态机。
var expectedEvent = map[SagaStep]EventKind{
	StepInventoryChecking:   EventInventoryCheckResult,
	StepInventoryReserving:  EventInventoryReserveResult,
	StepPaymentProcessing:   EventPaymentResult,
	StepInventoryCommitting: EventInventoryCommitResult,
	StepPaymentRefunding:    EventPaymentRefundResult,
	StepInventoryReleasing:  EventInventoryReleaseResult,
}

// SagaState 是一个订单 saga 的持久化状态记录，orderId 唯一。
type SagaState struct {
	OrderID       string
	UserID        string
	Items         []contracts.OrderItem
	Amount        float64
	PaymentMethod contracts.PaymentMethod
	Step          SagaStep
	// PaymentCompleted 标记扣款是否实际发生过。补偿时据此决定要不要退款：
	// 免支付或尚未扣款的订单直接释放库存。
	PaymentCompleted bool
	// Notes 累积各步骤的失败原因和退款异常，最终落到订单上。
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSagaState 从触发事件建立 saga 状态记录。
func NewSagaState(ev contracts.OrderCreatedEvent) *SagaState {
	return &SagaState{
		OrderID:       ev.OrderID,
		UserID:        ev.UserID,
		Items:         ev.OrderItems,
		Amount:        ev.OrderAmount,
		PaymentMethod: ev.PaymentMethod,
		Step:          StepStarted,
	}
}

// Accepts 判断当前步骤是否在等待这种事件。
func (s *SagaState) Accepts(kind EventKind) bool {
	return expectedEvent[s.Step] == kind
}

// Advance 推进到下一步骤。终态之后不允许再推进。
func (s *SagaState) Advance(next SagaStep) error {
	if s.Step.Terminal() {
		return errors.Errorf("saga %s already terminal at %s", s.OrderID, s.Step)
	}
	s.Step = next
	return nil
}

// AppendNote 追加一条步骤备注。
func (s *SagaState) AppendNote(note string) {
	if note == "" {
		return
	}
	if s.Notes == "" {
		s.Notes = note
		return
	}
	s.Notes += "; " + note
}
