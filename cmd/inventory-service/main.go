// cmd/inventory-service/main.go
package main

import (
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"meridian/internal/contracts"
	"meridian/internal/pkg/bootstrap"
	"meridian/internal/pkg/logger"
	"meridian/internal/pkg/mq"
	"meridian/internal/pkg/redis"
	"meridian/internal/service/inventory/application"
	"meridian/internal/service/inventory/domain"
	"meridian/internal/service/inventory/infrastructure"
	"meridian/internal/service/inventory/interfaces"
)

const (
	serviceName   = "inventory-service"
	consumerGroup = "inventory-service-group"
)

// main 函数是应用的"组装根" (Composition Root)
func main() {
	bootstrap.Run(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8082,
		RegisterHandlers: func(appCtx *bootstrap.AppCtx) {
			cfg := appCtx.Config
			brokers := cfg.Infra.Kafka.Brokers

			db, err := gorm.Open(gormmysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
			if err != nil {
				logger.L().Fatal().Err(err).Msg("failed to connect mysql")
			}
			repo := infrastructure.NewGormInventoryRepository(db)
			if err := repo.AutoMigrate(); err != nil {
				logger.L().Fatal().Err(err).Msg("failed to migrate inventory table")
			}

			// 缓存不可用时降级为直接读库
			var cache domain.ViewCache
			if redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr); err != nil {
				logger.L().Warn().Err(err).Msg("redis unavailable, inventory views served from db")
			} else {
				cache = infrastructure.NewRedisViewCache(redisClient, cfg.Cache.InventoryTTL)
			}

			service := application.NewService(repo, cache)
			interfaces.NewInventoryHandler(service).RegisterRoutes(appCtx.Mux)

			events := interfaces.NewEventConsumer(service,
				mq.NewKafkaWriter(brokers, contracts.TopicInventoryCheckResult),
				mq.NewKafkaWriter(brokers, contracts.TopicInventoryUpdateResult),
			)
			for topic, handler := range map[string]mq.MessageHandler{
				contracts.TopicInventoryCheck:  events.HandleCheck,
				contracts.TopicInventoryUpdate: events.HandleUpdate,
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
