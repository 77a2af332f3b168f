// internal/service/order/infrastructure/kafka_command_bus.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"meridian/internal/contracts"
	"meridian/internal/pkg/mq"
)

// KafkaCommandBus 把编排器的命令发到各自的主题。
// 所有消息都以 orderId 作 key：Hash balancer 保证同一 saga 的命令
// 进同一分区，协作方按发布顺序消费。
type KafkaCommandBus struct {
	orderCreated    *kafka.Writer
	inventoryCheck  *kafka.Writer
	inventoryUpdate *kafka.Writer
	paymentRequest  *kafka.Writer
	paymentRefund   *kafka.Writer
	notifications   *kafka.Writer
}

func NewKafkaCommandBus(brokers []string) *KafkaCommandBus {
	return &KafkaCommandBus{
		orderCreated:    mq.NewKafkaWriter(brokers, contracts.TopicOrderCreated),
		inventoryCheck:  mq.NewKafkaWriter(brokers, contracts.TopicInventoryCheck),
		inventoryUpdate: mq.NewKafkaWriter(brokers, contracts.TopicInventoryUpdate),
		paymentRequest:  mq.NewKafkaWriter(brokers, contracts.TopicPaymentRequest),
		paymentRefund:   mq.NewKafkaWriter(brokers, contracts.TopicPaymentRefund),
		notifications:   mq.NewKafkaWriter(brokers, contracts.TopicNotifications),
	}
}

func (b *KafkaCommandBus) PublishOrderCreated(ctx context.Context, ev contracts.OrderCreatedEvent) error {
	return publish(ctx, b.orderCreated, ev.OrderID, ev)
}

func (b *KafkaCommandBus) PublishInventoryCheck(ctx context.Context, ev contracts.InventoryCheckEvent) error {
	return publish(ctx, b.inventoryCheck, ev.OrderID, ev)
}

func (b *KafkaCommandBus) PublishInventoryUpdate(ctx context.Context, ev contracts.InventoryUpdateEvent) error {
	return publish(ctx, b.inventoryUpdate, ev.OrderID, ev)
}

func (b *KafkaCommandBus) PublishPaymentRequest(ctx context.Context, ev contracts.PaymentRequestEvent) error {
	return publish(ctx, b.paymentRequest, ev.OrderID, ev)
}

func (b *KafkaCommandBus) PublishPaymentRefund(ctx context.Context, ev contracts.PaymentRefundEvent) error {
	return publish(ctx, b.paymentRefund, ev.OrderID, ev)
}

func (b *KafkaCommandBus) PublishNotification(ctx context.Context, ev contracts.NotificationEvent) error {
	return publish(ctx, b.notifications, ev.OrderID, ev)
}

// Close 关闭全部 writer。
func (b *KafkaCommandBus) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{
		b.orderCreated, b.inventoryCheck, b.inventoryUpdate,
		b.paymentRequest, b.paymentRefund, b.notifications,
	} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func publish(ctx context.Context, writer *kafka.Writer, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal event for topic %s", writer.Topic)
	}
	return mq.ProduceMessage(ctx, writer, []byte(key), payload)
}
