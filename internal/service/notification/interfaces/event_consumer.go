// internal/service/notification/interfaces/event_consumer.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"meridian/internal/contracts"
	"meridian/internal/service/notification/application"
)

const serviceName = "notification-service"

// EventConsumer 消费通知事件并经由 Hub 推送。
type EventConsumer struct {
	hub *application.Hub
}

func NewEventConsumer(hub *application.Hub) *EventConsumer {
	return &EventConsumer{hub: hub}
}

// HandleNotification 处理一条通知。通知是 fire-and-forget：用户离线
// 直接丢弃，不是错误。
func (c *EventConsumer) HandleNotification(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer(serviceName).Start(ctx, "notification.HandleNotification")
	defer span.End()

	var event contracts.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal notification event")
	}
	c.hub.Push(ctx, event)
	return nil
}
