// internal/service/payment/interfaces/event_consumer.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"meridian/internal/contracts"
	"meridian/internal/pkg/mq"
	"meridian/internal/service/payment/application"
)

const serviceName = "payment-service"

// EventConsumer 消费扣款与退款请求，并把结果发回结果主题。
// 业务上的拒绝（超限、无对应扣款）是正常的 success=false 结果，
// 只有解码失败和结果发布失败才作为错误进入 DLT 流程。
type EventConsumer struct {
	service            *application.Service
	requestResult      *kafka.Writer
	refundResultWriter *kafka.Writer
}

func NewEventConsumer(service *application.Service, requestResult, refundResult *kafka.Writer) *EventConsumer {
	return &EventConsumer{
		service:            service,
		requestResult:      requestResult,
		refundResultWriter: refundResult,
	}
}

// HandleRequest 处理一条扣款请求。
func (c *EventConsumer) HandleRequest(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "payment.HandleRequest")
	defer span.End()

	var event contracts.PaymentRequestEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal payment request")
	}

	result := c.service.Charge(ctx, event)
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal payment result")
	}
	return mq.ProduceMessage(ctx, c.requestResult, []byte(event.OrderID), payload)
}

// HandleRefund 处理一条退款请求。
func (c *EventConsumer) HandleRefund(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "payment.HandleRefund")
	defer span.End()

	var event contracts.PaymentRefundEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal payment refund request")
	}

	result := c.service.Refund(ctx, event)
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal refund result")
	}
	return mq.ProduceMessage(ctx, c.refundResultWriter, []byte(event.OrderID), payload)
}
