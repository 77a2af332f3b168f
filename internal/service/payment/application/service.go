// internal/service/payment/application/service.go
package application

import (
	"context"
	"fmt"
	"sync"

	"meridian/internal/contracts"
	"meridian/internal/pkg/logger"
)

// Service 是模拟的支付处理器。
//
// 扣款规则是确定性的：金额必须为正且不超过单笔限额。已扣款的订单
// 记录在内存账本里，退款要求先有对应的扣款。重复的扣款/退款请求
// 幂等地返回上一次的结果。
type Service struct {
	limit float64

	mu      sync.Mutex
	charges map[string]float64 // orderId -> 已扣金额
	refunds map[string]bool    // orderId -> 已退款
}

// NewService 创建支付处理器。limit <= 0 表示不设单笔限额。
func NewService(limit float64) *Service {
	return &Service{
		limit:   limit,
		charges: make(map[string]float64),
		refunds: make(map[string]bool),
	}
}

// Charge 处理一笔扣款请求。
func (s *Service) Charge(ctx context.Context, ev contracts.PaymentRequestEvent) contracts.PaymentResultEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := contracts.PaymentResultEvent{OrderID: ev.OrderID}

	if _, ok := s.charges[ev.OrderID]; ok {
		// 重复投递，幂等返回成功
		result.Success = true
		result.Message = "Payment already processed"
		return result
	}

	if ev.Amount <= 0 {
		result.Success = false
		result.Message = fmt.Sprintf("invalid payment amount: %.2f", ev.Amount)
		return result
	}
	if s.limit > 0 && ev.Amount > s.limit {
		result.Success = false
		result.Message = fmt.Sprintf("payment of %.2f exceeds the per-transaction limit of %.2f", ev.Amount, s.limit)
		logger.Ctx(ctx).Warn().
			Str("orderId", ev.OrderID).
			Float64("amount", ev.Amount).
			Msg("payment declined, amount over limit")
		return result
	}

	s.charges[ev.OrderID] = ev.Amount
	result.Success = true
	result.Message = "Payment processed successfully"
	logger.Ctx(ctx).Info().
		Str("orderId", ev.OrderID).
		Str("userId", ev.UserID).
		Float64("amount", ev.Amount).
		Msg("✅ payment processed")
	return result
}

// Refund 处理一笔退款请求。
func (s *Service) Refund(ctx context.Context, ev contracts.PaymentRefundEvent) contracts.PaymentRefundResultEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := contracts.PaymentRefundResultEvent{OrderID: ev.OrderID}

	if s.refunds[ev.OrderID] {
		result.Success = true
		result.Message = "Refund already processed"
		return result
	}

	charged, ok := s.charges[ev.OrderID]
	if !ok {
		result.Success = false
		result.Message = "no payment found for order " + ev.OrderID
		return result
	}
	if ev.Amount > charged {
		result.Success = false
		result.Message = fmt.Sprintf("refund of %.2f exceeds charged amount %.2f", ev.Amount, charged)
		return result
	}

	s.refunds[ev.OrderID] = true
	result.Success = true
	result.Message = "Refund processed successfully"
	logger.Ctx(ctx).Info().
		Str("orderId", ev.OrderID).
		Float64("amount", ev.Amount).
		Msg("✅ refund processed")
	return result
}
