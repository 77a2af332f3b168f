// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"meridian/internal/pkg/logger"
)

// MessageHandler 处理一条已解出追踪上下文的消息。
// 返回错误表示这条消息处理失败，将被移交 FailureHandler。
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consumer 是所有服务共用的消费循环：
// FetchMessage -> 恢复追踪上下文 -> handler -> (失败则移交 DLT) -> CommitMessages。
// offset 在移交之后一律提交，坏消息不会阻塞分区。
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	failure *FailureHandler

	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewConsumer 创建一个消费者。failure 可以为 nil，此时失败只记日志。
func NewConsumer(reader *kafka.Reader, handler MessageHandler, failure *FailureHandler) *Consumer {
	return &Consumer{reader: reader, handler: handler, failure: failure}
}

// Start 启动消费循环。这是一个长期运行的后台 goroutine。
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().
			Str("topic", c.reader.Config().Topic).
			Str("group", c.reader.Config().GroupID).
			Msg("✅ Kafka consumer started")
		for {
			if c.stopped.Load() {
				return
			}
			// 使用 FetchMessage 而不是 ReadMessage，自己控制提交时机
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || c.stopped.Load() {
					logger.Ctx(ctx).Info().
						Str("topic", c.reader.Config().Topic).
						Msg("🛑 Kafka consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch message, retrying")
				time.Sleep(time.Second) // 避免快速失败循环
				continue
			}

			msgCtx := ExtractTraceContext(ctx, msg.Headers)
			if err := c.handler(msgCtx, msg); err != nil {
				if c.failure != nil {
					c.failure.Handle(msgCtx, msg, err)
				} else {
					logger.Ctx(msgCtx).Error().Err(err).
						Str("topic", msg.Topic).
						Str("key", string(msg.Key)).
						Msg("message handler failed")
				}
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit messages")
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (c *Consumer) Stop(ctx context.Context) {
	c.stopped.Store(true)
	c.reader.Close()
	c.wg.Wait()
	logger.Ctx(ctx).Info().
		Str("topic", c.reader.Config().Topic).
		Msg("✅ Kafka consumer stopped")
}
