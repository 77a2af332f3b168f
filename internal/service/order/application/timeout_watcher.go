// internal/service/order/application/timeout_watcher.go
package application

import (
	"context"
	"sync"
	"time"

	"meridian/internal/pkg/logger"
	"meridian/internal/pkg/zookeeper"
	"meridian/internal/service/order/domain"
)

const watcherLockResource = "saga-timeout-watcher"

// TimeoutWatcher 周期性地把超时未完结的 saga 推入补偿链。
//
// 多实例部署时通过 ZooKeeper 分布式锁选主，同一时刻只有一个实例
// 在巡检，避免对同一个过期 saga 的并发补偿。zkConn 为 nil 时退化为
// 单实例模式，直接巡检。
type TimeoutWatcher struct {
	store        domain.SagaStore
	orchestrator *Orchestrator
	zkConn       *zookeeper.Conn
	timeout      time.Duration
	interval     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTimeoutWatcher(store domain.SagaStore, orchestrator *Orchestrator, zkConn *zookeeper.Conn, timeout, interval time.Duration) *TimeoutWatcher {
	return &TimeoutWatcher{
		store:        store,
		orchestrator: orchestrator,
		zkConn:       zkConn,
		timeout:      timeout,
		interval:     interval,
	}
}

// Start 启动巡检。先竞争领导权，拿到后按固定间隔扫描。
func (w *TimeoutWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		if w.zkConn != nil {
			lock, err := zookeeper.NewDistributedLock(w.zkConn, watcherLockResource)
			if err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("could not create watcher lock, timeout sweeping disabled")
				return
			}
			logger.Ctx(ctx).Info().Msg("timeout watcher waiting for leadership")
			if err := lock.Lock(ctx); err != nil {
				// ctx 取消时正常退出
				return
			}
			defer lock.Unlock()
			logger.Ctx(ctx).Info().Msg("✅ timeout watcher acquired leadership")
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

// Stop 停止巡检并等待进行中的一轮结束。
func (w *TimeoutWatcher) Stop(ctx context.Context) {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logger.Ctx(ctx).Info().Msg("✅ timeout watcher stopped")
}

// sweep 扫描一轮过期 saga 并逐个触发补偿。
func (w *TimeoutWatcher) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.timeout)
	expired, err := w.store.FindExpired(ctx, cutoff)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("expired saga scan failed")
		return
	}
	if len(expired) == 0 {
		return
	}

	logger.Ctx(ctx).Warn().Int("count", len(expired)).Msg("found expired sagas")
	for _, state := range expired {
		if err := w.orchestrator.Expire(ctx, state.OrderID); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("orderId", state.OrderID).
				Msg("could not expire saga")
		}
	}
}
