// internal/service/inventory/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meridian/internal/pkg/metrics"
	"meridian/internal/service/inventory/domain"
)

// GormInventoryRepository 是 domain.Repository 的 GORM 实现。
type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// AutoMigrate 建表。服务启动时调用一次。
func (r *GormInventoryRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&InventoryModel{})
}

// Transaction 在一个数据库事务内执行 fn，fn 收到绑定事务的仓储。
func (r *GormInventoryRepository) Transaction(ctx context.Context, fn func(tx domain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormInventoryRepository{db: tx})
	})
}

func (r *GormInventoryRepository) Create(ctx context.Context, record *domain.Record) error {
	model := toModel(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		// MySQL 1062: 唯一索引冲突，即该商品已开账
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return domain.ErrAlreadyExists
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	record.ID = model.ID
	record.CreatedAt = model.CreatedAt
	record.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormInventoryRepository) FindByProductID(ctx context.Context, productID int64) (*domain.Record, error) {
	var model InventoryModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toDomain(&model), nil
}

func (r *GormInventoryRepository) FindByProductIDs(ctx context.Context, productIDs []int64) ([]*domain.Record, error) {
	var models []InventoryModel
	err := r.db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]*domain.Record, 0, len(models))
	for i := range models {
		records = append(records, toDomain(&models[i]))
	}
	return records, nil
}

// FindByProductIDForUpdate 以 SELECT ... FOR UPDATE 读取台账行，
// 排它锁持有到事务提交。只能在 Transaction 内调用。
func (r *GormInventoryRepository) FindByProductIDForUpdate(ctx context.Context, productID int64) (*domain.Record, error) {
	var model InventoryModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toDomain(&model), nil
}

func (r *GormInventoryRepository) FindAll(ctx context.Context) ([]*domain.Record, error) {
	var models []InventoryModel
	err := r.db.WithContext(ctx).Order("product_id").Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]*domain.Record, 0, len(models))
	for i := range models {
		records = append(records, toDomain(&models[i]))
	}
	return records, nil
}

// Save 写回一行并递增版本号。WHERE 带上旧版本号：持行锁时版本必然匹配，
// 不持锁时版本不匹配说明有并发写入，返回 ErrVersionConflict。
func (r *GormInventoryRepository) Save(ctx context.Context, record *domain.Record) error {
	result := r.db.WithContext(ctx).Model(&InventoryModel{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]interface{}{
			"quantity":          record.Quantity,
			"reserved_quantity": record.ReservedQuantity,
			"version":           record.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		metrics.VersionConflicts.Inc()
		return domain.ErrVersionConflict
	}
	record.Version++
	return nil
}
