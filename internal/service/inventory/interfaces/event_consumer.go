// internal/service/inventory/interfaces/event_consumer.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"meridian/internal/contracts"
	"meridian/internal/pkg/logger"
	"meridian/internal/pkg/mq"
	"meridian/internal/service/inventory/application"
)

const serviceName = "inventory-service"

// EventConsumer 消费 saga 发来的库存命令，并把结果发回结果主题。
//
// 业务失败（缺货、超释放）不是消费失败：它们被编码成 success=false 的
// 结果事件正常发布。只有解码失败和结果发布失败才返回错误进入 DLT 流程。
type EventConsumer struct {
	service            *application.Service
	checkResultWriter  *kafka.Writer
	updateResultWriter *kafka.Writer
}

func NewEventConsumer(service *application.Service, checkResultWriter, updateResultWriter *kafka.Writer) *EventConsumer {
	return &EventConsumer{
		service:            service,
		checkResultWriter:  checkResultWriter,
		updateResultWriter: updateResultWriter,
	}
}

// HandleCheck 处理一条 inventory-check 命令。
func (c *EventConsumer) HandleCheck(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "inventory.HandleCheck")
	defer span.End()

	var event contracts.InventoryCheckEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal inventory check event")
	}

	result := c.service.CheckAvailability(ctx, event)
	logger.Ctx(ctx).Info().
		Str("orderId", event.OrderID).
		Bool("available", result.Available).
		Msg("inventory check finished")

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal inventory check result")
	}
	return mq.ProduceMessage(ctx, c.checkResultWriter, []byte(event.OrderID), payload)
}

// HandleUpdate 处理一条 inventory-update 命令。
func (c *EventConsumer) HandleUpdate(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "inventory.HandleUpdate")
	defer span.End()

	var event contracts.InventoryUpdateEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal inventory update event")
	}

	result := c.service.ApplyUpdate(ctx, event)
	logger.Ctx(ctx).Info().
		Str("orderId", event.OrderID).
		Str("updateType", string(event.UpdateType)).
		Bool("success", result.Success).
		Msg("inventory update finished")

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal inventory update result")
	}
	return mq.ProduceMessage(ctx, c.updateResultWriter, []byte(event.OrderID), payload)
}
