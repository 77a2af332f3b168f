// internal/contracts/events.go
// Package contracts 定义服务之间通过 Kafka 交换的消息结构。
// 所有消息都以 orderId 作为关联键和分区键。
package contracts

// OrderItem 是订单行项目，在命令和事件中原样传递。
type OrderItem struct {
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// PaymentMethod 是下单时选择的支付方式。
type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "CASH"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodBankWallet PaymentMethod = "BANK_WALLET"
)

// InventoryUpdateType 标记一次库存变更命令的语义，
// 随命令/结果往返传递，编排器靠它分发到正确的后续步骤。
type InventoryUpdateType string

const (
	UpdateTypeReserve InventoryUpdateType = "RESERVE"
	UpdateTypeCommit  InventoryUpdateType = "COMMIT"
	UpdateTypeRelease InventoryUpdateType = "RELEASE"
)

// OrderCreatedEvent 由 order-service 在订单落库后发布，触发 saga。
type OrderCreatedEvent struct {
	OrderID       string        `json:"orderId"`
	UserID        string        `json:"userId"`
	OrderItems    []OrderItem   `json:"orderItems"`
	OrderAmount   float64       `json:"orderAmount"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// InventoryCheckEvent 要求 inventory-service 做一次无锁的可用性预检。
type InventoryCheckEvent struct {
	OrderID    string      `json:"orderId"`
	OrderItems []OrderItem `json:"orderItems"`
}

// InventoryCheckResultEvent 汇总所有缺货项。检查是建议性的：
// 检查期间不持有任何锁，后续 RESERVE 仍可能失败。
type InventoryCheckResultEvent struct {
	OrderID   string `json:"orderId"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// InventoryUpdateEvent 是一次带类型标记的库存变更命令。
type InventoryUpdateEvent struct {
	OrderID    string              `json:"orderId"`
	OrderItems []OrderItem         `json:"orderItems"`
	UpdateType InventoryUpdateType `json:"updateType"`
}

// InventoryUpdateResultEvent 携带变更结果。台账内部的任何错误都在这里
// 被表达为 success=false，绝不会作为异常跨越消息边界。
type InventoryUpdateResultEvent struct {
	OrderID    string              `json:"orderId"`
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	UpdateType InventoryUpdateType `json:"updateType"`
}

// PaymentRequestEvent 要求 payment-service 发起一笔扣款。
type PaymentRequestEvent struct {
	OrderID string  `json:"orderId"`
	UserID  string  `json:"userId"`
	Amount  float64 `json:"amount"`
}

// PaymentResultEvent 是扣款结果。
type PaymentResultEvent struct {
	OrderID string `json:"orderId"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PaymentRefundEvent 要求 payment-service 退款。
type PaymentRefundEvent struct {
	OrderID string  `json:"orderId"`
	UserID  string  `json:"userId"`
	Amount  float64 `json:"amount"`
}

// PaymentRefundResultEvent 是退款结果。无论成败，saga 都会继续释放库存。
type PaymentRefundResultEvent struct {
	OrderID string `json:"orderId"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NotificationEvent 是发给用户的通知，fire-and-forget，没有结果消息。
type NotificationEvent struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}
