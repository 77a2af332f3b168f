// internal/service/order/interfaces/saga_event_consumer.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"meridian/internal/contracts"
	"meridian/internal/service/order/application"
)

const serviceName = "order-service"

// SagaEventConsumer 把五个入站主题的消息解码后交给编排器。
// 编排器返回的错误代表基础设施故障（存储不可用等），由消费循环
// 移交 DLT；业务上的失败结果在编排器内部走补偿链，不产生错误。
type SagaEventConsumer struct {
	orchestrator *application.Orchestrator
}

func NewSagaEventConsumer(orchestrator *application.Orchestrator) *SagaEventConsumer {
	return &SagaEventConsumer{orchestrator: orchestrator}
}

// HandleOrderCreated 消费触发事件。
func (c *SagaEventConsumer) HandleOrderCreated(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "saga.HandleOrderCreated")
	defer span.End()

	var event contracts.OrderCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal order created event")
	}
	return c.orchestrator.HandleOrderCreated(ctx, event)
}

// HandleInventoryCheckResult 消费库存预检结果。
func (c *SagaEventConsumer) HandleInventoryCheckResult(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "saga.HandleInventoryCheckResult")
	defer span.End()

	var event contracts.InventoryCheckResultEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal inventory check result")
	}
	return c.orchestrator.HandleInventoryCheckResult(ctx, event)
}

// HandleInventoryUpdateResult 消费库存变更结果。
func (c *SagaEventConsumer) HandleInventoryUpdateResult(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "saga.HandleInventoryUpdateResult")
	defer span.End()

	var event contracts.InventoryUpdateResultEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal inventory update result")
	}
	return c.orchestrator.HandleInventoryUpdateResult(ctx, event)
}

// HandlePaymentResult 消费扣款结果。
func (c *SagaEventConsumer) HandlePaymentResult(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "saga.HandlePaymentResult")
	defer span.End()

	var event contracts.PaymentResultEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal payment result")
	}
	return c.orchestrator.HandlePaymentResult(ctx, event)
}

// HandlePaymentRefundResult 消费退款结果。
func (c *SagaEventConsumer) HandlePaymentRefundResult(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "saga.HandlePaymentRefundResult")
	defer span.End()

	var event contracts.PaymentRefundResultEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal payment refund result")
	}
	return c.orchestrator.HandlePaymentRefundResult(ctx, event)
}
