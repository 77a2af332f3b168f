// internal/pkg/mq/failure.go
package mq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"meridian/internal/pkg/logger"
)

// 死信消息头，记录原始位置和失败原因，便于事后排查。
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionMessage  = "x-exception-message"
)

// FailureHandler 把处理失败的消息转发到死信主题。
// 消费侧不做自动重试（重试属于传输层的职责），失败即移交 DLT 并继续前进，
// 保证监听器永远不会被单条坏消息卡死。
type FailureHandler struct {
	dltWriter *kafka.Writer
}

// NewFailureHandler 创建一个失败处理器。dltTopic 通常为 "<topic>.DLT"。
func NewFailureHandler(brokers []string, dltTopic string) *FailureHandler {
	return &FailureHandler{dltWriter: NewKafkaWriter(brokers, dltTopic)}
}

// Handle 将失败消息连同上下文头写入死信主题。
// 写入 DLT 本身失败时只能记日志：offset 已经提交，消息内容在日志里兜底。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		),
	}
	InjectTraceContext(ctx, &dead.Headers)

	if err := h.dltWriter.WriteMessages(ctx, dead); err != nil {
		logger.Ctx(ctx).Error().
			Err(err).
			Str("original_topic", msg.Topic).
			Str("key", string(msg.Key)).
			Str("value", string(msg.Value)).
			Str("cause", cause.Error()).
			Msg("🚨 CRITICAL: failed to forward message to DLT, payload dumped to log")
		return
	}
	logger.Ctx(ctx).Warn().
		Str("original_topic", msg.Topic).
		Str("key", string(msg.Key)).
		Str("cause", cause.Error()).
		Msg("Message moved to DLT")
}

// Close 关闭 DLT writer。
func (h *FailureHandler) Close() error {
	if h.dltWriter == nil {
		return nil
	}
	return h.dltWriter.Close()
}

// DLTTopic 返回约定的死信主题名。
func DLTTopic(topic string) string {
	return fmt.Sprintf("%s.DLT", topic)
}
