package application

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"meridian/internal/contracts"
	"meridian/internal/service/order/domain"
	"meridian/internal/service/order/infrastructure"
)

// fakeBus 记录发布的命令序列，并允许注入发布失败。
type fakeBus struct {
	published []string
	failOn    map[string]error
	notices   []contracts.NotificationEvent
}

func newFakeBus() *fakeBus {
	return &fakeBus{failOn: make(map[string]error)}
}

func (b *fakeBus) record(name string) error {
	if err, ok := b.failOn[name]; ok {
		delete(b.failOn, name)
		return err
	}
	b.published = append(b.published, name)
	return nil
}

func (b *fakeBus) PublishOrderCreated(_ context.Context, _ contracts.OrderCreatedEvent) error {
	return b.record("order-created")
}
func (b *fakeBus) PublishInventoryCheck(_ context.Context, _ contracts.InventoryCheckEvent) error {
	return b.record("inventory-check")
}
func (b *fakeBus) PublishInventoryUpdate(_ context.Context, ev contracts.InventoryUpdateEvent) error {
	return b.record("inventory-update:" + string(ev.UpdateType))
}
func (b *fakeBus) PublishPaymentRequest(_ context.Context, _ contracts.PaymentRequestEvent) error {
	return b.record("payment-request")
}
func (b *fakeBus) PublishPaymentRefund(_ context.Context, _ contracts.PaymentRefundEvent) error {
	return b.record("payment-refund")
}
func (b *fakeBus) PublishNotification(_ context.Context, ev contracts.NotificationEvent) error {
	if err, ok := b.failOn["notification"]; ok {
		return err
	}
	b.notices = append(b.notices, ev)
	return nil
}

// fakeOrders 是 OrderRepository 的内存实现。
type fakeOrders struct {
	orders map[string]*domain.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]*domain.Order)}
}

func (f *fakeOrders) Create(_ context.Context, order *domain.Order) error {
	f.orders[order.ID] = order
	return nil
}
func (f *fakeOrders) FindByID(_ context.Context, orderID string) (*domain.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}
func (f *fakeOrders) FindByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}
func (f *fakeOrders) Save(_ context.Context, order *domain.Order) error {
	f.orders[order.ID] = order
	return nil
}

type fixture struct {
	orchestrator *Orchestrator
	store        domain.SagaStore
	orders       *fakeOrders
	bus          *fakeBus
}

func newFixture(t *testing.T, rule string) *fixture {
	t.Helper()
	rules, err := NewPaymentRules(rule)
	if err != nil {
		t.Fatalf("NewPaymentRules: %v", err)
	}
	store := infrastructure.NewMemorySagaStore()
	orders := newFakeOrders()
	bus := newFakeBus()
	return &fixture{
		orchestrator: NewOrchestrator(store, orders, bus, rules),
		store:        store,
		orders:       orders,
		bus:          bus,
	}
}

func (f *fixture) startSaga(t *testing.T, method contracts.PaymentMethod) contracts.OrderCreatedEvent {
	t.Helper()
	items := []contracts.OrderItem{{ProductID: 1, Quantity: 2, Price: 10}}
	order, err := domain.NewOrder("u-1", items, method)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	f.orders.Create(context.Background(), order)

	ev := contracts.OrderCreatedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		OrderItems:    order.Items,
		OrderAmount:   order.Amount,
		PaymentMethod: method,
	}
	if err := f.orchestrator.HandleOrderCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleOrderCreated: %v", err)
	}
	return ev
}

func (f *fixture) step(t *testing.T, orderID string) domain.SagaStep {
	t.Helper()
	state, err := f.store.Find(context.Background(), orderID)
	if err != nil {
		t.Fatalf("Find saga: %v", err)
	}
	return state.Step
}

func (f *fixture) assertPublished(t *testing.T, want ...string) {
	t.Helper()
	if len(f.bus.published) != len(want) {
		t.Fatalf("published %v, want %v", f.bus.published, want)
	}
	for i := range want {
		if f.bus.published[i] != want[i] {
			t.Fatalf("published %v, want %v", f.bus.published, want)
		}
	}
}

const defaultRule = `paymentMethod == "CASH"`

func TestHappyPathWithPayment(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{OrderID: id, Available: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeReserve})
	f.orchestrator.HandlePaymentResult(ctx, contracts.PaymentResultEvent{OrderID: id, Success: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeCommit})

	f.assertPublished(t,
		"inventory-check",
		"inventory-update:RESERVE",
		"payment-request",
		"inventory-update:COMMIT",
	)
	if got := f.step(t, id); got != domain.StepCompleted {
		t.Fatalf("saga step=%s, want COMPLETED", got)
	}
	if f.orders.orders[id].Status != domain.OrderStatusCompleted {
		t.Fatalf("order status=%s, want COMPLETED", f.orders.orders[id].Status)
	}
	if len(f.bus.notices) != 1 {
		t.Fatalf("notices=%d, want 1", len(f.bus.notices))
	}
}

func TestCashOrderSkipsPayment(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCash)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{OrderID: id, Available: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeReserve})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeCommit})

	f.assertPublished(t,
		"inventory-check",
		"inventory-update:RESERVE",
		"inventory-update:COMMIT",
	)
	if got := f.step(t, id); got != domain.StepCompleted {
		t.Fatalf("saga step=%s, want COMPLETED", got)
	}
}

func TestCheckFailureCancelsWithoutCompensation(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{
		OrderID: id, Available: false, Message: "Contain items out of stock as: product 1",
	})

	// 检查失败时什么都没预占，不应有任何补偿命令
	f.assertPublished(t, "inventory-check")
	if got := f.step(t, id); got != domain.StepCancelled {
		t.Fatalf("saga step=%s, want CANCELLED", got)
	}
	order := f.orders.orders[id]
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("order status=%s", order.Status)
	}
	if order.Notes == "" {
		t.Fatal("cancellation reason not recorded on order")
	}
}

func TestPaymentFailureReleasesReservation(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{OrderID: id, Available: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeReserve})
	f.orchestrator.HandlePaymentResult(ctx, contracts.PaymentResultEvent{OrderID: id, Success: false, Message: "card declined"})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeRelease})

	f.assertPublished(t,
		"inventory-check",
		"inventory-update:RESERVE",
		"payment-request",
		"inventory-update:RELEASE", // 扣款没发生，不需要退款
	)
	if got := f.step(t, id); got != domain.StepCancelled {
		t.Fatalf("saga step=%s, want CANCELLED", got)
	}
}

func TestCommitFailureAfterPaymentRefundsThenReleases(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{OrderID: id, Available: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeReserve})
	f.orchestrator.HandlePaymentResult(ctx, contracts.PaymentResultEvent{OrderID: id, Success: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: false, UpdateType: contracts.UpdateTypeCommit, Message: "deadlock"})
	f.orchestrator.HandlePaymentRefundResult(ctx, contracts.PaymentRefundResultEvent{OrderID: id, Success: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeRelease})

	f.assertPublished(t,
		"inventory-check",
		"inventory-update:RESERVE",
		"payment-request",
		"inventory-update:COMMIT",
		"payment-refund",
		"inventory-update:RELEASE",
	)
	if got := f.step(t, id); got != domain.StepCancelled {
		t.Fatalf("saga step=%s, want CANCELLED", got)
	}
}

// 退款失败不阻塞补偿：release 与 cancel 照常进行，异常记录在订单备注里。
func TestRefundFailureStillReleasesAndCancels(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{OrderID: id, Available: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeReserve})
	f.orchestrator.HandlePaymentResult(ctx, contracts.PaymentResultEvent{OrderID: id, Success: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: false, UpdateType: contracts.UpdateTypeCommit})
	f.orchestrator.HandlePaymentRefundResult(ctx, contracts.PaymentRefundResultEvent{OrderID: id, Success: false, Message: "gateway timeout"})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeRelease})

	if got := f.step(t, id); got != domain.StepCancelled {
		t.Fatalf("saga step=%s, want CANCELLED", got)
	}
	order := f.orders.orders[id]
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("order status=%s", order.Status)
	}
	if !strings.Contains(order.Notes, "refund unresolved") {
		t.Fatalf("refund failure not recorded in notes: %q", order.Notes)
	}
}

// 命令发布失败被合成为该步骤的失败结果。
func TestPublishFailureIsSyntheticStepFailure(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{OrderID: id, Available: true})

	// 扣款命令发不出去 -> 等价于扣款失败 -> 释放预占
	f.bus.failOn["payment-request"] = errors.New("broker unreachable")
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeReserve})

	if got := f.step(t, id); got != domain.StepInventoryReleasing {
		t.Fatalf("saga step=%s, want INVENTORY_RELEASING", got)
	}
	last := f.bus.published[len(f.bus.published)-1]
	if last != "inventory-update:RELEASE" {
		t.Fatalf("last published=%s, want inventory-update:RELEASE", last)
	}
}

func TestMismatchedEventIsDropped(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	// saga 在 INVENTORY_CHECKING，却收到支付结果：必须丢弃
	if err := f.orchestrator.HandlePaymentResult(ctx, contracts.PaymentResultEvent{OrderID: id, Success: true}); err != nil {
		t.Fatalf("dropping must not error: %v", err)
	}
	if got := f.step(t, id); got != domain.StepInventoryChecking {
		t.Fatalf("saga step=%s, want INVENTORY_CHECKING", got)
	}
	f.assertPublished(t, "inventory-check")
}

func TestUnknownOrderEventIsDropped(t *testing.T) {
	f := newFixture(t, defaultRule)
	err := f.orchestrator.HandlePaymentResult(context.Background(), contracts.PaymentResultEvent{OrderID: "ghost", Success: true})
	if err != nil {
		t.Fatalf("dropping must not error: %v", err)
	}
}

func TestDuplicateTriggerIsIgnored(t *testing.T) {
	f := newFixture(t, defaultRule)
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)

	if err := f.orchestrator.HandleOrderCreated(context.Background(), ev); err != nil {
		t.Fatalf("duplicate trigger must not error: %v", err)
	}
	// 只应有第一次的 inventory-check
	f.assertPublished(t, "inventory-check")
}

func TestExpireCompensatesFromCurrentStep(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{OrderID: id, Available: true})
	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeReserve})
	// saga 卡在 PAYMENT_PROCESSING，支付结果永远没来

	if err := f.orchestrator.Expire(ctx, id); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if got := f.step(t, id); got != domain.StepInventoryReleasing {
		t.Fatalf("saga step=%s, want INVENTORY_RELEASING", got)
	}

	f.orchestrator.HandleInventoryUpdateResult(ctx, contracts.InventoryUpdateResultEvent{OrderID: id, Success: true, UpdateType: contracts.UpdateTypeRelease})
	if got := f.step(t, id); got != domain.StepCancelled {
		t.Fatalf("saga step=%s, want CANCELLED", got)
	}
}

func TestExpireTerminalSagaIsNoop(t *testing.T) {
	f := newFixture(t, defaultRule)
	ctx := context.Background()
	ev := f.startSaga(t, contracts.PaymentMethodCreditCard)
	id := ev.OrderID

	f.orchestrator.HandleInventoryCheckResult(ctx, contracts.InventoryCheckResultEvent{OrderID: id, Available: false, Message: "nope"})
	published := len(f.bus.published)

	if err := f.orchestrator.Expire(ctx, id); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if len(f.bus.published) != published {
		t.Fatalf("expire on terminal saga published commands: %v", f.bus.published)
	}
}

