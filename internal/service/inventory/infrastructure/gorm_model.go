// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"meridian/internal/service/inventory/domain"
)

// InventoryModel 是台账行的 GORM 持久化对象。
type InventoryModel struct {
	ID               uint  `gorm:"primaryKey;autoIncrement"`
	ProductID        int64 `gorm:"column:product_id;uniqueIndex;not null"`
	Quantity         int   `gorm:"not null"`
	ReservedQuantity int   `gorm:"column:reserved_quantity;not null;default:0"`
	Version          int64 `gorm:"not null;default:1"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (InventoryModel) TableName() string {
	return "inventory"
}

func toModel(r *domain.Record) *InventoryModel {
	return &InventoryModel{
		ID:               r.ID,
		ProductID:        r.ProductID,
		Quantity:         r.Quantity,
		ReservedQuantity: r.ReservedQuantity,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toDomain(m *InventoryModel) *domain.Record {
	return &domain.Record{
		ID:               m.ID,
		ProductID:        m.ProductID,
		Quantity:         m.Quantity,
		ReservedQuantity: m.ReservedQuantity,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
