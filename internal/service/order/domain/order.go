// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"meridian/internal/contracts"
)

// OrderStatus 是订单对外可见的生命周期状态。
// saga 的中间步骤不在这里体现，订单只有三个终态相关状态。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderFinalized 订单已经到达终态，不能再变更
	ErrOrderFinalized = errors.New("order already finalized")
)

// Order 是订单聚合根。
type Order struct {
	ID            string
	UserID        string
	Items         []contracts.OrderItem
	Amount        float64
	PaymentMethod contracts.PaymentMethod
	Status        OrderStatus
	// Notes 记录终态原因，例如取消原因或退款异常
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder 创建一个待处理订单。金额由行项目算出，不信任调用方传入的总价。
func NewOrder(userID string, items []contracts.OrderItem, method contracts.PaymentMethod) (*Order, error) {
	if userID == "" {
		return nil, errors.New("userId is required")
	}
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.Errorf("invalid quantity %d for product %d", item.Quantity, item.ProductID)
		}
		if item.Price < 0 {
			return nil, errors.Errorf("invalid price %f for product %d", item.Price, item.ProductID)
		}
	}
	switch method {
	case contracts.PaymentMethodCash, contracts.PaymentMethodCreditCard, contracts.PaymentMethodBankWallet:
	default:
		return nil, errors.Errorf("unsupported payment method: %s", method)
	}

	amount := 0.0
	for _, item := range items {
		amount += item.Price * float64(item.Quantity)
	}

	return &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         items,
		Amount:        amount,
		PaymentMethod: method,
		Status:        OrderStatusPending,
	}, nil
}

// Complete 将订单置为完成态。
func (o *Order) Complete() error {
	if o.Status != OrderStatusPending {
		return errors.Wrapf(ErrOrderFinalized, "order %s is %s", o.ID, o.Status)
	}
	o.Status = OrderStatusCompleted
	return nil
}

// Cancel 将订单置为取消态并记录原因。
func (o *Order) Cancel(reason string) error {
	if o.Status != OrderStatusPending {
		return errors.Wrapf(ErrOrderFinalized, "order %s is %s", o.ID, o.Status)
	}
	o.Status = OrderStatusCancelled
	o.Notes = reason
	return nil
}
