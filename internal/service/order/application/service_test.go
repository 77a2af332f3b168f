package application

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"meridian/internal/contracts"
	"meridian/internal/service/order/domain"
)

func newOrderService(f *fixture) *OrderApplicationService {
	return NewOrderApplicationService(f.orders, f.store, f.bus)
}

func defaultCreateRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		UserID:        "u-1",
		Items:         []contracts.OrderItem{{ProductID: 1, Quantity: 2, Price: 10}},
		PaymentMethod: contracts.PaymentMethodCreditCard,
	}
}

func TestCreateOrderPrecreatesSagaRecord(t *testing.T) {
	f := newFixture(t, defaultRule)
	svc := newOrderService(f)
	ctx := context.Background()

	view, err := svc.CreateOrder(ctx, defaultCreateRequest())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// saga 记录在发布触发事件之前就已存在，步骤为 STARTED
	state, err := f.store.Find(ctx, view.OrderID)
	if err != nil {
		t.Fatalf("Find saga: %v", err)
	}
	if state.Step != domain.StepStarted {
		t.Fatalf("saga step=%s, want STARTED", state.Step)
	}
	f.assertPublished(t, "order-created")
}

// 触发事件发布失败的订单必须留下可被超时巡检接管的 saga 记录，
// 否则它会永远停在 PENDING。
func TestCreateOrderTriggerPublishFailureLeavesExpirableSaga(t *testing.T) {
	f := newFixture(t, defaultRule)
	svc := newOrderService(f)
	ctx := context.Background()

	f.bus.failOn["order-created"] = errors.New("broker unreachable")
	view, err := svc.CreateOrder(ctx, defaultCreateRequest())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	id := view.OrderID

	if f.orders.orders[id].Status != domain.OrderStatusPending {
		t.Fatalf("order status=%s, want PENDING", f.orders.orders[id].Status)
	}

	// 巡检能找到这条停在 STARTED 的 saga
	expired, err := f.store.FindExpired(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FindExpired: %v", err)
	}
	if len(expired) != 1 || expired[0].OrderID != id {
		t.Fatalf("expired=%v, want the stranded saga", expired)
	}

	// 过期处理把订单取消掉
	if err := f.orchestrator.Expire(ctx, id); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if got := f.step(t, id); got != domain.StepCancelled {
		t.Fatalf("saga step=%s, want CANCELLED", got)
	}
	if f.orders.orders[id].Status != domain.OrderStatusCancelled {
		t.Fatalf("order status=%s, want CANCELLED", f.orders.orders[id].Status)
	}
}

// 编排器从下单侧预建的 STARTED 记录继续推进，而不是把触发事件
// 当成重复投递丢弃。
func TestHandleOrderCreatedResumesPrecreatedSaga(t *testing.T) {
	f := newFixture(t, defaultRule)
	svc := newOrderService(f)
	ctx := context.Background()

	view, err := svc.CreateOrder(ctx, defaultCreateRequest())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	id := view.OrderID

	ev := contracts.OrderCreatedEvent{
		OrderID:       id,
		UserID:        view.UserID,
		OrderItems:    view.Items,
		OrderAmount:   view.Amount,
		PaymentMethod: view.PaymentMethod,
	}
	if err := f.orchestrator.HandleOrderCreated(ctx, ev); err != nil {
		t.Fatalf("HandleOrderCreated: %v", err)
	}
	if got := f.step(t, id); got != domain.StepInventoryChecking {
		t.Fatalf("saga step=%s, want INVENTORY_CHECKING", got)
	}
	f.assertPublished(t, "order-created", "inventory-check")

	// 第二次投递：saga 已经离开 STARTED，丢弃
	if err := f.orchestrator.HandleOrderCreated(ctx, ev); err != nil {
		t.Fatalf("duplicate trigger must not error: %v", err)
	}
	f.assertPublished(t, "order-created", "inventory-check")
}
