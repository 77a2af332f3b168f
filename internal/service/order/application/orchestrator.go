// internal/service/order/application/orchestrator.go
package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"meridian/internal/contracts"
	"meridian/internal/pkg/logger"
	"meridian/internal/pkg/metrics"
	"meridian/internal/service/order/domain"
)

// Orchestrator 是订单 saga 的编排器。
//
// 每个订单一条 saga 状态记录，事件按 orderId 串行处理。正向链推进到
// COMPLETED；任何一步失败都从失败点进入补偿链：先退款（如果扣过款）、
// 再释放预占、最后取消订单。退款结果不阻塞补偿——退款失败被记录并
// 计数，释放与取消照常进行。
//
// 命令发布失败与协作方返回失败同等对待：发布失败被合成为该步骤的
// 失败结果并立即处理，不会留下一个永远等不到回应的 saga。
type Orchestrator struct {
	store  domain.SagaStore
	orders domain.OrderRepository
	bus    domain.CommandBus
	rules  *PaymentRules

	locks *keyedMutex
}

func NewOrchestrator(store domain.SagaStore, orders domain.OrderRepository, bus domain.CommandBus, rules *PaymentRules) *Orchestrator {
	return &Orchestrator{
		store:  store,
		orders: orders,
		bus:    bus,
		rules:  rules,
		locks:  newKeyedMutex(),
	}
}

// ===== 入口：触发事件 =====

// HandleOrderCreated 为新订单启动 saga 并发出第一条命令。
//
// 下单侧在发布触发事件之前就预建了 STARTED 记录，所以这里通常是
// 从已有记录继续推进；记录缺失（预建失败）时兜底创建。已经推进过
// STARTED 的记录说明触发事件是重复投递，丢弃。
func (o *Orchestrator) HandleOrderCreated(ctx context.Context, ev contracts.OrderCreatedEvent) error {
	unlock := o.locks.lock(ev.OrderID)
	defer unlock()

	state, err := o.store.Find(ctx, ev.OrderID)
	switch {
	case err == nil:
		if state.Step != domain.StepStarted {
			metrics.SagaEventDropped.WithLabelValues("duplicate_start").Inc()
			logger.Ctx(ctx).Warn().Str("orderId", ev.OrderID).Msg("saga already started, dropping duplicate trigger")
			return nil
		}
	case errors.Is(err, domain.ErrSagaNotFound):
		state = domain.NewSagaState(ev)
		if err := o.store.Create(ctx, state); err != nil {
			return errors.Wrap(err, "create saga state")
		}
	default:
		return err
	}

	metrics.SagaStarted.Inc()
	logger.Ctx(ctx).Info().Str("orderId", ev.OrderID).Msg("✅ saga started")

	return o.startInventoryCheck(ctx, state)
}

// ===== 入口：结果事件 =====

// HandleInventoryCheckResult 处理库存预检结果。
func (o *Orchestrator) HandleInventoryCheckResult(ctx context.Context, ev contracts.InventoryCheckResultEvent) error {
	return o.withSaga(ctx, ev.OrderID, domain.EventInventoryCheckResult, func(state *domain.SagaState) error {
		if !ev.Available {
			// 检查失败时尚未预占任何库存，直接取消
			state.AppendNote(ev.Message)
			return o.cancel(ctx, state)
		}
		return o.startInventoryReserve(ctx, state)
	})
}

// HandleInventoryUpdateResult 按变更类型分发 reserve / commit / release 的结果。
func (o *Orchestrator) HandleInventoryUpdateResult(ctx context.Context, ev contracts.InventoryUpdateResultEvent) error {
	switch ev.UpdateType {
	case contracts.UpdateTypeReserve:
		return o.withSaga(ctx, ev.OrderID, domain.EventInventoryReserveResult, func(state *domain.SagaState) error {
			if !ev.Success {
				state.AppendNote(ev.Message)
				return o.cancel(ctx, state)
			}
			if o.rules.PaymentFree(state.PaymentMethod, state.Amount, state.UserID) {
				logger.Ctx(ctx).Info().Str("orderId", state.OrderID).Msg("order is payment-free, skipping payment")
				return o.startInventoryCommit(ctx, state)
			}
			return o.startPayment(ctx, state)
		})

	case contracts.UpdateTypeCommit:
		return o.withSaga(ctx, ev.OrderID, domain.EventInventoryCommitResult, func(state *domain.SagaState) error {
			if !ev.Success {
				state.AppendNote(ev.Message)
				return o.compensate(ctx, state)
			}
			return o.complete(ctx, state)
		})

	case contracts.UpdateTypeRelease:
		return o.withSaga(ctx, ev.OrderID, domain.EventInventoryReleaseResult, func(state *domain.SagaState) error {
			if !ev.Success {
				// 释放失败无处可退，记录后照常取消，留给对账处理
				state.AppendNote("inventory release failed: " + ev.Message)
				logger.Ctx(ctx).Error().
					Str("orderId", state.OrderID).
					Str("message", ev.Message).
					Msg("🚨 inventory release failed, reservation may be leaked")
			}
			return o.cancel(ctx, state)
		})

	default:
		metrics.SagaEventDropped.WithLabelValues("unknown_update_type").Inc()
		logger.Ctx(ctx).Warn().
			Str("orderId", ev.OrderID).
			Str("updateType", string(ev.UpdateType)).
			Msg("unknown inventory update type in result, dropping")
		return nil
	}
}

// HandlePaymentResult 处理扣款结果。
func (o *Orchestrator) HandlePaymentResult(ctx context.Context, ev contracts.PaymentResultEvent) error {
	return o.withSaga(ctx, ev.OrderID, domain.EventPaymentResult, func(state *domain.SagaState) error {
		if !ev.Success {
			// 扣款没有发生，补偿只需要释放预占
			state.AppendNote(ev.Message)
			return o.startInventoryRelease(ctx, state)
		}
		state.PaymentCompleted = true
		return o.startInventoryCommit(ctx, state)
	})
}

// HandlePaymentRefundResult 处理退款结果。无论退款成败，saga 都继续释放
// 库存并取消订单：退款失败只记录与计数，绝不让订单停在中间状态。
func (o *Orchestrator) HandlePaymentRefundResult(ctx context.Context, ev contracts.PaymentRefundResultEvent) error {
	return o.withSaga(ctx, ev.OrderID, domain.EventPaymentRefundResult, func(state *domain.SagaState) error {
		if !ev.Success {
			metrics.SagaRefundUnresolved.Inc()
			state.AppendNote("refund unresolved: " + ev.Message)
			logger.Ctx(ctx).Error().
				Str("orderId", state.OrderID).
				Str("message", ev.Message).
				Msg("🚨 refund failed, order needs manual reconciliation")
		}
		return o.startInventoryRelease(ctx, state)
	})
}

// Expire 由超时巡检调用，把一个停滞的 saga 从当前步骤推入补偿链。
// 调用方持有分布式领导权，这里只做本地串行化。
func (o *Orchestrator) Expire(ctx context.Context, orderID string) error {
	unlock := o.locks.lock(orderID)
	defer unlock()

	state, err := o.store.Find(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrSagaNotFound) {
			return nil
		}
		return err
	}
	if state.Step.Terminal() {
		return nil
	}

	metrics.SagaExpired.Inc()
	state.AppendNote(fmt.Sprintf("saga expired at step %s", state.Step))
	logger.Ctx(ctx).Warn().
		Str("orderId", orderID).
		Str("step", string(state.Step)).
		Msg("🛑 saga expired, starting compensation")

	switch state.Step {
	case domain.StepStarted, domain.StepInventoryChecking:
		// 还没预占任何东西
		return o.cancel(ctx, state)
	case domain.StepInventoryReserving:
		// 预占结果未知：发一次释放，台账会拒绝多余的释放
		return o.startInventoryRelease(ctx, state)
	case domain.StepPaymentProcessing, domain.StepInventoryCommitting:
		return o.compensate(ctx, state)
	case domain.StepPaymentRefunding:
		metrics.SagaRefundUnresolved.Inc()
		state.AppendNote("refund result never arrived")
		return o.startInventoryRelease(ctx, state)
	case domain.StepInventoryReleasing:
		state.AppendNote("release result never arrived")
		return o.cancel(ctx, state)
	}
	return nil
}

// ===== 公共骨架 =====

// withSaga 加载并锁定 saga，校验事件与当前步骤相容后执行 fn。
// 不相容的事件（未知订单、步骤不匹配、已到终态）被计数丢弃。
func (o *Orchestrator) withSaga(ctx context.Context, orderID string, kind domain.EventKind, fn func(state *domain.SagaState) error) error {
	unlock := o.locks.lock(orderID)
	defer unlock()

	state, err := o.store.Find(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrSagaNotFound) {
			metrics.SagaEventDropped.WithLabelValues("unknown_order").Inc()
			logger.Ctx(ctx).Warn().
				Str("orderId", orderID).
				Str("event", string(kind)).
				Msg("no saga for result event, dropping")
			return nil
		}
		return err
	}

	if !state.Accepts(kind) {
		metrics.SagaEventDropped.WithLabelValues("unexpected_step").Inc()
		logger.Ctx(ctx).Warn().
			Str("orderId", orderID).
			Str("step", string(state.Step)).
			Str("event", string(kind)).
			Msg("event does not match saga step, dropping")
		return nil
	}

	return fn(state)
}

// advanceAndPublish 推进到 next 并持久化，然后发布该步骤的命令。
// 发布失败被合成为该步骤的失败结果，交给 onPublishFailure 处理。
func (o *Orchestrator) advanceAndPublish(ctx context.Context, state *domain.SagaState, next domain.SagaStep,
	publish func() error, onPublishFailure func() error) error {

	if err := state.Advance(next); err != nil {
		return err
	}
	if err := o.store.Save(ctx, state); err != nil {
		return errors.Wrapf(err, "save saga %s at %s", state.OrderID, next)
	}

	if err := publish(); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("orderId", state.OrderID).
			Str("step", string(next)).
			Msg("command publish failed, treating as step failure")
		state.AppendNote(fmt.Sprintf("command delivery failed at %s: %v", next, err))
		return onPublishFailure()
	}
	return nil
}

// ===== 正向步骤 =====

func (o *Orchestrator) startInventoryCheck(ctx context.Context, state *domain.SagaState) error {
	return o.advanceAndPublish(ctx, state, domain.StepInventoryChecking,
		func() error {
			return o.bus.PublishInventoryCheck(ctx, contracts.InventoryCheckEvent{
				OrderID:    state.OrderID,
				OrderItems: state.Items,
			})
		},
		// 检查命令发不出去等价于检查失败
		func() error { return o.cancel(ctx, state) },
	)
}

func (o *Orchestrator) startInventoryReserve(ctx context.Context, state *domain.SagaState) error {
	return o.advanceAndPublish(ctx, state, domain.StepInventoryReserving,
		func() error {
			return o.bus.PublishInventoryUpdate(ctx, contracts.InventoryUpdateEvent{
				OrderID:    state.OrderID,
				OrderItems: state.Items,
				UpdateType: contracts.UpdateTypeReserve,
			})
		},
		// 预占命令未送达，没有任何东西被预占
		func() error { return o.cancel(ctx, state) },
	)
}

func (o *Orchestrator) startPayment(ctx context.Context, state *domain.SagaState) error {
	return o.advanceAndPublish(ctx, state, domain.StepPaymentProcessing,
		func() error {
			return o.bus.PublishPaymentRequest(ctx, contracts.PaymentRequestEvent{
				OrderID: state.OrderID,
				UserID:  state.UserID,
				Amount:  state.Amount,
			})
		},
		// 扣款命令未送达等价于扣款失败，预占需要释放
		func() error { return o.startInventoryRelease(ctx, state) },
	)
}

func (o *Orchestrator) startInventoryCommit(ctx context.Context, state *domain.SagaState) error {
	return o.advanceAndPublish(ctx, state, domain.StepInventoryCommitting,
		func() error {
			return o.bus.PublishInventoryUpdate(ctx, contracts.InventoryUpdateEvent{
				OrderID:    state.OrderID,
				OrderItems: state.Items,
				UpdateType: contracts.UpdateTypeCommit,
			})
		},
		func() error { return o.compensate(ctx, state) },
	)
}

// ===== 补偿步骤 =====

// compensate 从提交失败点进入补偿链：扣过款先退款，否则直接释放。
func (o *Orchestrator) compensate(ctx context.Context, state *domain.SagaState) error {
	if state.PaymentCompleted {
		return o.startPaymentRefund(ctx, state)
	}
	return o.startInventoryRelease(ctx, state)
}

func (o *Orchestrator) startPaymentRefund(ctx context.Context, state *domain.SagaState) error {
	return o.advanceAndPublish(ctx, state, domain.StepPaymentRefunding,
		func() error {
			return o.bus.PublishPaymentRefund(ctx, contracts.PaymentRefundEvent{
				OrderID: state.OrderID,
				UserID:  state.UserID,
				Amount:  state.Amount,
			})
		},
		// 退款命令发不出去与退款失败同样处理：计数、记录、继续释放
		func() error {
			metrics.SagaRefundUnresolved.Inc()
			return o.startInventoryRelease(ctx, state)
		},
	)
}

func (o *Orchestrator) startInventoryRelease(ctx context.Context, state *domain.SagaState) error {
	return o.advanceAndPublish(ctx, state, domain.StepInventoryReleasing,
		func() error {
			return o.bus.PublishInventoryUpdate(ctx, contracts.InventoryUpdateEvent{
				OrderID:    state.OrderID,
				OrderItems: state.Items,
				UpdateType: contracts.UpdateTypeRelease,
			})
		},
		func() error {
			state.AppendNote("inventory release command delivery failed, reservation may be leaked")
			return o.cancel(ctx, state)
		},
	)
}

// ===== 终态 =====

func (o *Orchestrator) complete(ctx context.Context, state *domain.SagaState) error {
	if err := state.Advance(domain.StepCompleted); err != nil {
		return err
	}
	if err := o.store.Save(ctx, state); err != nil {
		return errors.Wrapf(err, "save saga %s at COMPLETED", state.OrderID)
	}
	if err := o.finalizeOrder(ctx, state, true); err != nil {
		return err
	}

	metrics.SagaFinished.WithLabelValues("completed").Inc()
	logger.Ctx(ctx).Info().Str("orderId", state.OrderID).Msg("✅ saga completed")

	o.notify(ctx, state, fmt.Sprintf("Order %s completed successfully", state.OrderID))
	return nil
}

func (o *Orchestrator) cancel(ctx context.Context, state *domain.SagaState) error {
	if err := state.Advance(domain.StepCancelled); err != nil {
		return err
	}
	if err := o.store.Save(ctx, state); err != nil {
		return errors.Wrapf(err, "save saga %s at CANCELLED", state.OrderID)
	}
	if err := o.finalizeOrder(ctx, state, false); err != nil {
		return err
	}

	metrics.SagaFinished.WithLabelValues("cancelled").Inc()
	logger.Ctx(ctx).Info().
		Str("orderId", state.OrderID).
		Str("notes", state.Notes).
		Msg("🛑 saga cancelled")

	o.notify(ctx, state, fmt.Sprintf("Order %s cancelled: %s", state.OrderID, state.Notes))
	return nil
}

// finalizeOrder 把 saga 的终态同步到订单聚合。
func (o *Orchestrator) finalizeOrder(ctx context.Context, state *domain.SagaState, completed bool) error {
	order, err := o.orders.FindByID(ctx, state.OrderID)
	if err != nil {
		return errors.Wrapf(err, "load order %s for finalization", state.OrderID)
	}
	if completed {
		err = order.Complete()
	} else {
		err = order.Cancel(state.Notes)
	}
	if err != nil {
		if errors.Is(err, domain.ErrOrderFinalized) {
			return nil
		}
		return err
	}
	return o.orders.Save(ctx, order)
}

// notify 发送用户通知。通知是 fire-and-forget：发送失败只记日志，
// 不影响 saga 的终态。
func (o *Orchestrator) notify(ctx context.Context, state *domain.SagaState, message string) {
	err := o.bus.PublishNotification(ctx, contracts.NotificationEvent{
		OrderID: state.OrderID,
		UserID:  state.UserID,
		Message: message,
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("orderId", state.OrderID).
			Msg("notification publish failed")
	}
}
