// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"encoding/json"
	"time"

	"meridian/internal/contracts"
	"meridian/internal/service/order/domain"
)

// OrderModel 是订单聚合的 GORM 持久化对象。
type OrderModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	UserID        string `gorm:"column:user_id;index;size:64;not null"`
	Amount        float64
	PaymentMethod string `gorm:"column:payment_method;size:16"`
	Status        string `gorm:"size:16;index"`
	Notes         string `gorm:"type:text"`
	Items         []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 是订单行项目。
type OrderItemModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	OrderID   string `gorm:"column:order_id;index;size:36;not null"`
	ProductID int64  `gorm:"column:product_id;not null"`
	Quantity  int    `gorm:"not null"`
	Price     float64
}

func (OrderItemModel) TableName() string { return "order_items" }

// SagaStateModel 是 saga 状态记录的 GORM 持久化对象。
// 行项目以 JSON 存储：补偿命令需要原样重放行项目，不需要按列查询。
type SagaStateModel struct {
	OrderID          string `gorm:"primaryKey;size:36"`
	UserID           string `gorm:"column:user_id;size:64"`
	Items            string `gorm:"type:text"`
	Amount           float64
	PaymentMethod    string    `gorm:"column:payment_method;size:16"`
	Step             string    `gorm:"size:32;index:idx_step_created"`
	PaymentCompleted bool      `gorm:"column:payment_completed"`
	Notes            string    `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"index:idx_step_created"`
	UpdatedAt        time.Time
}

func (SagaStateModel) TableName() string { return "order_saga_states" }

func toOrderModel(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemModel{
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return &OrderModel{
		ID:            o.ID,
		UserID:        o.UserID,
		Amount:        o.Amount,
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		Notes:         o.Notes,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderDomain(m *OrderModel) *domain.Order {
	items := make([]contracts.OrderItem, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, contracts.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		Items:         items,
		Amount:        m.Amount,
		PaymentMethod: contracts.PaymentMethod(m.PaymentMethod),
		Status:        domain.OrderStatus(m.Status),
		Notes:         m.Notes,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toSagaModel(s *domain.SagaState) (*SagaStateModel, error) {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return nil, err
	}
	return &SagaStateModel{
		OrderID:          s.OrderID,
		UserID:           s.UserID,
		Items:            string(items),
		Amount:           s.Amount,
		PaymentMethod:    string(s.PaymentMethod),
		Step:             string(s.Step),
		PaymentCompleted: s.PaymentCompleted,
		Notes:            s.Notes,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}, nil
}

func toSagaDomain(m *SagaStateModel) (*domain.SagaState, error) {
	var items []contracts.OrderItem
	if m.Items != "" {
		if err := json.Unmarshal([]byte(m.Items), &items); err != nil {
			return nil, err
		}
	}
	return &domain.SagaState{
		OrderID:          m.OrderID,
		UserID:           m.UserID,
		Items:            items,
		Amount:           m.Amount,
		PaymentMethod:    contracts.PaymentMethod(m.PaymentMethod),
		Step:             domain.SagaStep(m.Step),
		PaymentCompleted: m.PaymentCompleted,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}
