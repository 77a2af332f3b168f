// internal/service/order/application/service.go
package application

import (
	"context"

	"github.com/pkg/errors"

	"meridian/internal/contracts"
	"meridian/internal/pkg/logger"
	"meridian/internal/service/order/domain"
)

// OrderApplicationService 实现下单与查询用例。
type OrderApplicationService struct {
	orders domain.OrderRepository
	store  domain.SagaStore
	bus    domain.CommandBus
}

func NewOrderApplicationService(orders domain.OrderRepository, store domain.SagaStore, bus domain.CommandBus) *OrderApplicationService {
	return &OrderApplicationService{orders: orders, store: store, bus: bus}
}

// CreateOrderRequest 是下单请求。
type CreateOrderRequest struct {
	UserID        string                  `json:"userId"`
	Items         []contracts.OrderItem   `json:"orderItems"`
	PaymentMethod contracts.PaymentMethod `json:"paymentMethod"`
}

// OrderView 是订单的对外只读视图。
type OrderView struct {
	OrderID       string                  `json:"orderId"`
	UserID        string                  `json:"userId"`
	Items         []contracts.OrderItem   `json:"orderItems"`
	Amount        float64                 `json:"orderAmount"`
	PaymentMethod contracts.PaymentMethod `json:"paymentMethod"`
	Status        domain.OrderStatus      `json:"status"`
	SagaStep      domain.SagaStep         `json:"sagaStep,omitempty"`
	Notes         string                  `json:"notes,omitempty"`
}

// CreateOrder 落库一个 PENDING 订单、预建 saga 记录并发布触发事件。
//
// saga 记录在发布触发事件之前创建：发布失败时订单不会悬空，超时
// 巡检会把这条停在 STARTED 的 saga 过期并取消订单。编排器消费到
// 触发事件时从 STARTED 记录继续推进，重复投递照常被丢弃。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderView, error) {
	order, err := domain.NewOrder(req.UserID, req.Items, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, errors.Wrap(err, "persist order")
	}

	event := contracts.OrderCreatedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		OrderItems:    order.Items,
		OrderAmount:   order.Amount,
		PaymentMethod: order.PaymentMethod,
	}

	sagaReady := true
	if err := s.store.Create(ctx, domain.NewSagaState(event)); err != nil {
		sagaReady = false
		logger.Ctx(ctx).Error().Err(err).
			Str("orderId", order.ID).
			Msg("saga record create failed, relying on trigger event consumption")
	}

	if err := s.bus.PublishOrderCreated(ctx, event); err != nil {
		if !sagaReady {
			// 既没有 saga 记录也没有触发事件，没有任何机制会接管这个订单
			return nil, errors.Wrap(err, "publish order-created trigger")
		}
		logger.Ctx(ctx).Error().Err(err).
			Str("orderId", order.ID).
			Msg("trigger event publish failed, timeout watcher will expire the saga and cancel the order")
	} else {
		logger.Ctx(ctx).Info().
			Str("orderId", order.ID).
			Str("userId", order.UserID).
			Float64("amount", order.Amount).
			Msg("✅ order created")
	}

	return s.toView(ctx, order), nil
}

// GetOrder 返回单个订单，并带上 saga 当前步骤（如果 saga 存在）。
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*OrderView, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, order), nil
}

// ListOrders 返回一个用户的全部订单。
func (s *OrderApplicationService) ListOrders(ctx context.Context, userID string) ([]*OrderView, error) {
	orders, err := s.orders.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]*OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, s.toView(ctx, order))
	}
	return views, nil
}

func (s *OrderApplicationService) toView(ctx context.Context, order *domain.Order) *OrderView {
	view := &OrderView{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Items:         order.Items,
		Amount:        order.Amount,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		Notes:         order.Notes,
	}
	if state, err := s.store.Find(ctx, order.ID); err == nil {
		view.SagaStep = state.Step
	}
	return view
}
