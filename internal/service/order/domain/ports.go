// internal/service/order/domain/ports.go
package domain

import (
	"context"
	"time"

	"meridian/internal/contracts"
)

// ErrSagaNotFound 表示该 orderId 没有对应的 saga 状态记录。
var ErrSagaNotFound = errorSagaNotFound{}

type errorSagaNotFound struct{}

func (errorSagaNotFound) Error() string { return "saga state not found" }

// OrderRepository 是订单聚合的持久化端口。
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, orderID string) (*Order, error)
	FindByUserID(ctx context.Context, userID string) ([]*Order, error)
	// Save 写回状态与备注
	Save(ctx context.Context, order *Order) error
}

// SagaStore 保存 saga 状态记录，orderId 唯一。
// 编排器假定自己是单写者：同一 orderId 的读-改-写由编排器内部串行化。
type SagaStore interface {
	Create(ctx context.Context, state *SagaState) error
	Find(ctx context.Context, orderID string) (*SagaState, error)
	Save(ctx context.Context, state *SagaState) error
	// FindExpired 返回在 cutoff 之前创建且仍未到终态的 saga。
	FindExpired(ctx context.Context, cutoff time.Time) ([]*SagaState, error)
}

// CommandBus 是编排器向协作方发送命令的出站端口。
// 任何一次发布失败都必须作为错误返回：编排器会把它当成该步骤的
// 失败结果处理，而不是留下一个永远等不到回应的 saga。
type CommandBus interface {
	PublishOrderCreated(ctx context.Context, ev contracts.OrderCreatedEvent) error
	PublishInventoryCheck(ctx context.Context, ev contracts.InventoryCheckEvent) error
	PublishInventoryUpdate(ctx context.Context, ev contracts.InventoryUpdateEvent) error
	PublishPaymentRequest(ctx context.Context, ev contracts.PaymentRequestEvent) error
	PublishPaymentRefund(ctx context.Context, ev contracts.PaymentRefundEvent) error
	PublishNotification(ctx context.Context, ev contracts.NotificationEvent) error
}
