// internal/pkg/mq/topics.go
package mq

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"meridian/internal/pkg/logger"
)

// EnsureTopics 在启动时幂等地创建所需的主题。
// 分区数决定了每个 saga 关联键的并行度上限；副本数跟随集群配置。
func EnsureTopics(brokers []string, partitions int, topics ...string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return errors.Wrapf(err, "dial kafka broker %s", brokers[0])
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return errors.Wrap(err, "resolve kafka controller")
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return errors.Wrap(err, "dial kafka controller")
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: -1,
		})
	}

	// CreateTopics 对已存在的主题返回成功，可以无条件调用
	if err := controllerConn.CreateTopics(configs...); err != nil {
		return errors.Wrap(err, "create topics")
	}

	logger.L().Info().Strs("topics", topics).Int("partitions", partitions).Msg("Kafka topics ensured")
	return nil
}
