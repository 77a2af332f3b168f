// internal/pkg/config/config.go
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置根。
// 每个服务只使用自己关心的部分，未用到的字段保持零值即可。
type Config struct {
	Infra   InfraConfig   `yaml:"infra"`
	Saga    SagaConfig    `yaml:"saga"`
	Cache   CacheConfig   `yaml:"cache"`
	Payment PaymentConfig `yaml:"payment"`
}

type InfraConfig struct {
	Kafka     KafkaConfig     `yaml:"kafka"`
	Mysql     MysqlConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type MysqlConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type ZookeeperConfig struct {
	Servers []string `yaml:"servers"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// SagaConfig 控制编排器的行为。
type SagaConfig struct {
	// Timeout 是一个在途 saga 允许停留在非终态的最长时间，
	// 超过后由 TimeoutWatcher 走补偿路径。
	Timeout time.Duration `yaml:"timeout"`
	// SweepInterval 是超时扫描的周期。
	SweepInterval time.Duration `yaml:"sweepInterval"`
	// PaymentFreeRule 是一个 CEL 表达式，返回 true 表示该订单
	// 不需要异步支付授权（例如货到付款），saga 直接跳到 COMMIT。
	PaymentFreeRule string `yaml:"paymentFreeRule"`
}

type CacheConfig struct {
	InventoryTTL time.Duration `yaml:"inventoryTTL"`
}

// PaymentConfig 控制模拟支付处理器。
type PaymentConfig struct {
	// Limit 是单笔扣款限额，<= 0 表示不限。
	Limit float64 `yaml:"limit"`
}

// Default 返回本地开发用的缺省配置。
func Default() Config {
	return Config{
		Infra: InfraConfig{
			Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}},
			Mysql:     MysqlConfig{DSN: "root:root@tcp(localhost:3306)/meridian?charset=utf8mb4&parseTime=True&loc=Local"},
			Redis:     RedisConfig{Addr: "localhost:6379"},
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Zookeeper: ZookeeperConfig{Servers: []string{"localhost:2181"}},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Saga: SagaConfig{
			Timeout:         5 * time.Minute,
			SweepInterval:   30 * time.Second,
			PaymentFreeRule: `paymentMethod == "CASH"`,
		},
		Cache:   CacheConfig{InventoryTTL: time.Hour},
		Payment: PaymentConfig{Limit: 10000},
	}
}

// Load 读取 yaml 配置文件并应用环境变量覆盖。
// path 为空时只使用缺省值加环境变量。
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv 用 MERIDIAN_* 环境变量覆盖常用字段，方便容器部署。
func applyEnv(cfg *Config) {
	if v := os.Getenv("MERIDIAN_KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MERIDIAN_MYSQL_DSN"); v != "" {
		cfg.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("MERIDIAN_REDIS_ADDR"); v != "" {
		cfg.Infra.Redis.Addr = v
	}
	if v := os.Getenv("MERIDIAN_JAEGER_ENDPOINT"); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("MERIDIAN_ZK_SERVERS"); v != "" {
		cfg.Infra.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("MERIDIAN_NACOS_SERVER_ADDRS"); v != "" {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("MERIDIAN_NACOS_NAMESPACE"); v != "" {
		cfg.Infra.Nacos.Namespace = v
	}
	if v := os.Getenv("MERIDIAN_NACOS_GROUP"); v != "" {
		cfg.Infra.Nacos.Group = v
	}
	if v := os.Getenv("MERIDIAN_SAGA_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Saga.Timeout = d
		}
	}
	if v := os.Getenv("MERIDIAN_SAGA_PAYMENT_FREE_RULE"); v != "" {
		cfg.Saga.PaymentFreeRule = v
	}
}

func (c Config) validate() error {
	if len(c.Infra.Kafka.Brokers) == 0 {
		return errors.New("config: at least one kafka broker is required")
	}
	if c.Saga.Timeout <= 0 {
		return errors.New("config: saga timeout must be positive")
	}
	if c.Saga.SweepInterval <= 0 {
		return errors.New("config: saga sweep interval must be positive")
	}
	return nil
}
