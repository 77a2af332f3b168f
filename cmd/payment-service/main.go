// cmd/payment-service/main.go
package main

import (
	"meridian/internal/contracts"
	"meridian/internal/pkg/bootstrap"
	"meridian/internal/pkg/mq"
	"meridian/internal/service/payment/application"
	"meridian/internal/service/payment/interfaces"
)

const (
	serviceName   = "payment-service"
	consumerGroup = "payment-service-group"
)

// main 函数是应用的"组装根" (Composition Root)
func main() {
	bootstrap.Run(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8083,
		RegisterHandlers: func(appCtx *bootstrap.AppCtx) {
			cfg := appCtx.Config
			brokers := cfg.Infra.Kafka.Brokers

			service := application.NewService(cfg.Payment.Limit)

			events := interfaces.NewEventConsumer(service,
				mq.NewKafkaWriter(brokers, contracts.TopicPaymentRequestResult),
				mq.NewKafkaWriter(brokers, contracts.TopicPaymentRefundResult),
			)
			for topic, handler := range map[string]mq.MessageHandler{
				contracts.TopicPaymentRequest: events.HandleRequest,
				contracts.TopicPaymentRefund:  events.HandleRefund,
			} {
				appCtx.AddComponent(mq.NewConsumer(
					mq.NewKafkaReader(brokers, topic, consumerGroup),
					handler,
					mq.NewFailureHandler(brokers, mq.DLTTopic(topic)),
				))
			}
		},
	})
}
