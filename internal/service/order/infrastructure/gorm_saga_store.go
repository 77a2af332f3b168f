// internal/service/order/infrastructure/gorm_saga_store.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"meridian/internal/service/order/domain"
)

// GormSagaStore 把 saga 状态持久化到数据库，进程重启后 saga 可以
// 继续接收结果事件，超时巡检也能看到历史遗留的 saga。
type GormSagaStore struct {
	db *gorm.DB
}

func NewGormSagaStore(db *gorm.DB) *GormSagaStore {
	return &GormSagaStore{db: db}
}

func (s *GormSagaStore) AutoMigrate() error {
	return s.db.AutoMigrate(&SagaStateModel{})
}

func (s *GormSagaStore) Create(ctx context.Context, state *domain.SagaState) error {
	model, err := toSagaModel(state)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	state.CreatedAt = model.CreatedAt
	state.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *GormSagaStore) Find(ctx context.Context, orderID string) (*domain.SagaState, error) {
	var model SagaStateModel
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSagaNotFound
		}
		return nil, err
	}
	return toSagaDomain(&model)
}

func (s *GormSagaStore) Save(ctx context.Context, state *domain.SagaState) error {
	model, err := toSagaModel(state)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&SagaStateModel{}).
		Where("order_id = ?", state.OrderID).
		Updates(map[string]interface{}{
			"step":              model.Step,
			"payment_completed": model.PaymentCompleted,
			"notes":             model.Notes,
		}).Error
}

// FindExpired 返回 cutoff 之前创建且尚未到终态的 saga。
func (s *GormSagaStore) FindExpired(ctx context.Context, cutoff time.Time) ([]*domain.SagaState, error) {
	var models []SagaStateModel
	err := s.db.WithContext(ctx).
		Where("created_at < ? AND step NOT IN ?", cutoff,
			[]string{string(domain.StepCompleted), string(domain.StepCancelled)}).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	states := make([]*domain.SagaState, 0, len(models))
	for i := range models {
		state, err := toSagaDomain(&models[i])
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}
