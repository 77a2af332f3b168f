// internal/service/inventory/application/service.go
package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"meridian/internal/contracts"
	"meridian/internal/pkg/logger"
	"meridian/internal/pkg/metrics"
	"meridian/internal/service/inventory/domain"
)

// Service 实现库存台账的全部用例：对外的开账/调账/查询 API，
// 以及 saga 驱动的 check / reserve / commit / release 消息处理。
type Service struct {
	repo  domain.Repository
	cache domain.ViewCache // 可为 nil，此时读请求直接打库
	group singleflight.Group
}

func NewService(repo domain.Repository, cache domain.ViewCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// ===== API =====

// Provision 为一个商品开账。重复开账返回 ErrAlreadyExists。
func (s *Service) Provision(ctx context.Context, productID int64, quantity int) (*domain.View, error) {
	record, err := domain.NewRecord(productID, quantity)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Int64("productId", productID).Int("quantity", quantity).Msg("inventory provisioned")
	return toView(record), nil
}

// SetQuantity 运营调账：直接设置总量并截断超出的预占，然后使缓存失效。
func (s *Service) SetQuantity(ctx context.Context, productID int64, quantity int) (*domain.View, error) {
	var updated *domain.Record
	err := s.repo.Transaction(ctx, func(tx domain.Repository) error {
		record, err := tx.FindByProductIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if clamped := record.SetQuantity(quantity); clamped > 0 {
			logger.Ctx(ctx).Warn().
				Int64("productId", productID).
				Int("clamped", clamped).
				Msg("quantity adjustment clamped an outstanding reservation")
		}
		updated = record
		return tx.Save(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	s.evict(ctx, productID)
	return toView(updated), nil
}

// AddQuantity 补货：无条件增加总量，然后使缓存失效。
func (s *Service) AddQuantity(ctx context.Context, productID int64, amount int) (*domain.View, error) {
	if amount <= 0 {
		return nil, errors.New("restock amount must be positive")
	}
	var updated *domain.Record
	err := s.repo.Transaction(ctx, func(tx domain.Repository) error {
		record, err := tx.FindByProductIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		record.Add(amount)
		updated = record
		return tx.Save(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	s.evict(ctx, productID)
	logger.Ctx(ctx).Info().Int64("productId", productID).Int("amount", amount).Msg("inventory restocked")
	return toView(updated), nil
}

// Get 读穿缓存地返回库存视图。并发的缓存缺失由 singleflight 合并，
// 同一商品同时只有一次回源。
func (s *Service) Get(ctx context.Context, productID int64) (*domain.View, error) {
	if s.cache == nil {
		return s.loadView(ctx, productID)
	}

	if view, ok, err := s.cache.Get(ctx, productID); err == nil && ok {
		return view, nil
	} else if err != nil {
		// 缓存故障降级为直接读库
		logger.Ctx(ctx).Warn().Err(err).Int64("productId", productID).Msg("inventory cache read failed")
	}

	v, err, _ := s.group.Do(fmt.Sprintf("inv:%d", productID), func() (interface{}, error) {
		view, err := s.loadView(ctx, productID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, view); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("productId", productID).Msg("inventory cache write failed")
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.View), nil
}

// LowStock 返回可售余量不超过阈值的商品。
func (s *Service) LowStock(ctx context.Context, threshold int) ([]*domain.View, error) {
	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*domain.View, 0)
	for _, r := range records {
		if r.Available() <= threshold {
			views = append(views, toView(r))
		}
	}
	return views, nil
}

// ===== MESSAGE =====

// CheckAvailability 执行建议性的批量可用性检查。
//
// 检查期间不取任何锁：结果只用于快速失败，后续 RESERVE 仍以行锁下的
// 余量为准。所有缺口汇总进一条消息，而不是只报第一个。
func (s *Service) CheckAvailability(ctx context.Context, ev contracts.InventoryCheckEvent) contracts.InventoryCheckResultEvent {
	productIDs := make([]int64, 0, len(ev.OrderItems))
	for _, item := range ev.OrderItems {
		productIDs = append(productIDs, item.ProductID)
	}

	records, err := s.repo.FindByProductIDs(ctx, productIDs)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("orderId", ev.OrderID).Msg("inventory check query failed")
		return contracts.InventoryCheckResultEvent{
			OrderID:   ev.OrderID,
			Available: false,
			Message:   "Error processing inventory check: " + err.Error(),
		}
	}

	byProduct := make(map[int64]*domain.Record, len(records))
	for _, r := range records {
		byProduct[r.ProductID] = r
	}

	var shortfalls []string
	for _, item := range ev.OrderItems {
		record, ok := byProduct[item.ProductID]
		if !ok {
			shortfalls = append(shortfalls, fmt.Sprintf("product %d not found in inventory", item.ProductID))
			continue
		}
		if !record.HasAvailableQuantity(item.Quantity) {
			shortfalls = append(shortfalls, fmt.Sprintf("product %d has only %d available but %d requested",
				item.ProductID, record.Available(), item.Quantity))
		}
	}

	if len(shortfalls) > 0 {
		return contracts.InventoryCheckResultEvent{
			OrderID:   ev.OrderID,
			Available: false,
			Message:   "Contain items out of stock as: " + strings.Join(shortfalls, "; "),
		}
	}
	return contracts.InventoryCheckResultEvent{
		OrderID:   ev.OrderID,
		Available: true,
		Message:   "All items in stock",
	}
}

// ApplyUpdate 在一个事务内执行一次带类型的库存变更。
//
// 行项目先按 productId 排序再逐行加锁，全局统一的加锁顺序消除了
// 跨订单的死锁。任何一行失败都回滚整个变更，并把错误转换成
// success=false 的结果事件——台账错误永远不会跨越消息边界。
func (s *Service) ApplyUpdate(ctx context.Context, ev contracts.InventoryUpdateEvent) contracts.InventoryUpdateResultEvent {
	items := sortedItems(ev.OrderItems)

	err := s.repo.Transaction(ctx, func(tx domain.Repository) error {
		for _, item := range items {
			record, err := tx.FindByProductIDForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if err := s.applyItem(ctx, ev, record, item); err != nil {
				return err
			}
			if err := tx.Save(ctx, record); err != nil {
				return err
			}
		}
		return nil
	})

	result := contracts.InventoryUpdateResultEvent{
		OrderID:    ev.OrderID,
		UpdateType: ev.UpdateType,
	}
	if err != nil {
		metrics.LedgerOps.WithLabelValues(string(ev.UpdateType), "failure").Inc()
		logger.Ctx(ctx).Error().Err(err).
			Str("orderId", ev.OrderID).
			Str("updateType", string(ev.UpdateType)).
			Msg("inventory update failed")
		result.Success = false
		result.Message = "Error processing inventory update: " + err.Error()
		return result
	}

	metrics.LedgerOps.WithLabelValues(string(ev.UpdateType), "success").Inc()
	result.Success = true
	result.Message = successMessage(ev.UpdateType)

	for _, item := range items {
		s.evict(ctx, item.ProductID)
	}
	return result
}

// applyItem 对一行已加锁的台账应用单个行项目的变更。
func (s *Service) applyItem(ctx context.Context, ev contracts.InventoryUpdateEvent, record *domain.Record, item contracts.OrderItem) error {
	switch ev.UpdateType {
	case contracts.UpdateTypeReserve:
		return record.Reserve(item.Quantity)
	case contracts.UpdateTypeRelease:
		return record.ReleaseReserved(item.Quantity)
	case contracts.UpdateTypeCommit:
		clamped, err := record.Reduce(item.Quantity)
		if err != nil {
			return err
		}
		if err := record.ReleaseReserved(min(item.Quantity, record.ReservedQuantity)); err != nil {
			return err
		}
		if clamped > 0 {
			// 截断行为与上游保持兼容，但它掩盖了未对平的预占，必须可观测
			metrics.ReservationClamped.Inc()
			logger.Ctx(ctx).Warn().
				Str("orderId", ev.OrderID).
				Int64("productId", item.ProductID).
				Int("clamped", clamped).
				Msg("commit clamped reservedQuantity, an outstanding reservation was discarded")
		}
		return nil
	default:
		return fmt.Errorf("unknown inventory update type: %s", ev.UpdateType)
	}
}

func (s *Service) evict(ctx context.Context, productID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Evict(ctx, productID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("productId", productID).Msg("inventory cache evict failed")
	}
}

func (s *Service) loadView(ctx context.Context, productID int64) (*domain.View, error) {
	record, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return toView(record), nil
}

func sortedItems(items []contracts.OrderItem) []contracts.OrderItem {
	sorted := make([]contracts.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}

func successMessage(t contracts.InventoryUpdateType) string {
	switch t {
	case contracts.UpdateTypeReserve:
		return "Inventory reserved successfully"
	case contracts.UpdateTypeCommit:
		return "Inventory committed successfully"
	case contracts.UpdateTypeRelease:
		return "Inventory released successfully"
	}
	return "Inventory updated"
}

func toView(r *domain.Record) *domain.View {
	return &domain.View{
		ProductID:         r.ProductID,
		Quantity:          r.Quantity,
		ReservedQuantity:  r.ReservedQuantity,
		AvailableQuantity: r.Available(),
		UpdatedAt:         r.UpdatedAt.Format(time.RFC3339),
	}
}
