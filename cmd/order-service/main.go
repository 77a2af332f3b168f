// cmd/order-service/main.go
package main

import (
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"meridian/internal/contracts"
	"meridian/internal/pkg/bootstrap"
	"meridian/internal/pkg/logger"
	"meridian/internal/pkg/mq"
	"meridian/internal/pkg/zookeeper"
	"meridian/internal/service/order/application"
	"meridian/internal/service/order/infrastructure"
	"meridian/internal/service/order/interfaces"
)

const (
	serviceName   = "order-service"
	consumerGroup = "order-service-group"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Run(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8081,
		RegisterHandlers: func(appCtx *bootstrap.AppCtx) {
			cfg := appCtx.Config
			brokers := cfg.Infra.Kafka.Brokers

			if err := mq.EnsureTopics(brokers, 3, contracts.AllTopics()...); err != nil {
				logger.L().Fatal().Err(err).Msg("failed to ensure kafka topics")
			}

			db, err := gorm.Open(gormmysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
			if err != nil {
				logger.L().Fatal().Err(err).Msg("failed to connect mysql")
			}

			orderRepo := infrastructure.NewGormOrderRepository(db)
			if err := orderRepo.AutoMigrate(); err != nil {
				logger.L().Fatal().Err(err).Msg("failed to migrate order tables")
			}
			sagaStore := infrastructure.NewGormSagaStore(db)
			if err := sagaStore.AutoMigrate(); err != nil {
				logger.L().Fatal().Err(err).Msg("failed to migrate saga table")
			}

			bus := infrastructure.NewKafkaCommandBus(brokers)

			rules, err := application.NewPaymentRules(cfg.Saga.PaymentFreeRule)
			if err != nil {
				logger.L().Fatal().Err(err).Msg("invalid payment-free rule")
			}

			orchestrator := application.NewOrchestrator(sagaStore, orderRepo, bus, rules)
			orderService := application.NewOrderApplicationService(orderRepo, sagaStore, bus)

			interfaces.NewOrderHandler(orderService).RegisterRoutes(appCtx.Mux)

			// saga 超时巡检，多实例下经由 ZooKeeper 选主
			zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 0)
			if err != nil {
				logger.L().Warn().Err(err).Msg("zookeeper unavailable, timeout watcher runs without leadership election")
				zkConn = nil
			}
			appCtx.AddComponent(application.NewTimeoutWatcher(
				sagaStore, orchestrator, zkConn, cfg.Saga.Timeout, cfg.Saga.SweepInterval))

			// 编排器的五个入站主题
			events := interfaces.NewSagaEventConsumer(orchestrator)
			for topic, handler := range map[string]mq.MessageHandler{
				contracts.TopicOrderCreated:          events.HandleOrderCreated,
				contracts.TopicInventoryCheckResult:  events.HandleInventoryCheckResult,
				contracts.TopicInventoryUpdateResult: events.HandleInventoryUpdateResult,
				contracts.TopicPaymentRequestResult:  events.HandlePaymentResult,
				contracts.TopicPaymentRefundResult:   events.HandlePaymentRefundResult,
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
