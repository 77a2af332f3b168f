// cmd/notification-service/main.go
package main

import (
	"meridian/internal/contracts"
	"meridian/internal/pkg/bootstrap"
	"meridian/internal/pkg/mq"
	"meridian/internal/service/notification/application"
	"meridian/internal/service/notification/interfaces"
)

const (
	serviceName   = "notification-service"
	consumerGroup = "notification-service-group"
)

// main 函数是应用的"组装根" (Composition Root)
func main() {
	bootstrap.Run(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8084,
		RegisterHandlers: func(appCtx *bootstrap.AppCtx) {
			brokers := appCtx.Config.Infra.Kafka.Brokers

			hub := application.NewHub()
			interfaces.NewWsHandler(hub).RegisterRoutes(appCtx.Mux)

			topic := contracts.TopicNotifications
			appCtx.AddComponent(mq.NewConsumer(
				mq.NewKafkaReader(brokers, topic, consumerGroup),
				interfaces.NewEventConsumer(hub).HandleNotification,
				mq.NewFailureHandler(brokers, mq.DLTTopic(topic)),
			))
		},
	})
}
