// internal/service/order/infrastructure/memory_saga_store.go
package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"meridian/internal/service/order/domain"
)

// MemorySagaStore 是 SagaStore 的内存实现，测试和本地单机运行使用。
type MemorySagaStore struct {
	mu     sync.RWMutex
	states map[string]*domain.SagaState
}

func NewMemorySagaStore() *MemorySagaStore {
	return &MemorySagaStore{states: make(map[string]*domain.SagaState)}
}

func (s *MemorySagaStore) Create(_ context.Context, state *domain.SagaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[state.OrderID]; ok {
		return errors.Errorf("saga %s already exists", state.OrderID)
	}
	now := time.Now()
	state.CreatedAt = now
	state.UpdatedAt = now
	s.states[state.OrderID] = cloneState(state)
	return nil
}

func (s *MemorySagaStore) Find(_ context.Context, orderID string) (*domain.SagaState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[orderID]
	if !ok {
		return nil, domain.ErrSagaNotFound
	}
	return cloneState(state), nil
}

func (s *MemorySagaStore) Save(_ context.Context, state *domain.SagaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[state.OrderID]; !ok {
		return domain.ErrSagaNotFound
	}
	state.UpdatedAt = time.Now()
	s.states[state.OrderID] = cloneState(state)
	return nil
}

func (s *MemorySagaStore) FindExpired(_ context.Context, cutoff time.Time) ([]*domain.SagaState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var expired []*domain.SagaState
	for _, state := range s.states {
		if state.CreatedAt.Before(cutoff) && !state.Step.Terminal() {
			expired = append(expired, cloneState(state))
		}
	}
	return expired, nil
}

func cloneState(state *domain.SagaState) *domain.SagaState {
	clone := *state
	clone.Items = append(state.Items[:0:0], state.Items...)
	return &clone
}
