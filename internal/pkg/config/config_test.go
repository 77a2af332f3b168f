package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if len(cfg.Infra.Kafka.Brokers) == 0 {
		t.Fatal("default brokers missing")
	}
	if cfg.Saga.Timeout <= 0 || cfg.Saga.SweepInterval <= 0 {
		t.Fatal("default saga timings must be positive")
	}
	if cfg.Saga.PaymentFreeRule == "" {
		t.Fatal("default payment-free rule missing")
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
infra:
  kafka:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
  redis:
    addr: "redis:6379"
saga:
  timeout: 2m
  sweepInterval: 15s
  paymentFreeRule: 'paymentMethod == "CASH" && amount < 50.0'
payment:
  limit: 500
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Infra.Kafka.Brokers) != 2 {
		t.Fatalf("brokers=%v", cfg.Infra.Kafka.Brokers)
	}
	if cfg.Saga.Timeout != 2*time.Minute {
		t.Fatalf("timeout=%v", cfg.Saga.Timeout)
	}
	if cfg.Payment.Limit != 500 {
		t.Fatalf("payment limit=%v", cfg.Payment.Limit)
	}
	// 未覆盖的字段保持缺省值
	if cfg.Infra.Mysql.DSN == "" {
		t.Fatal("mysql dsn should fall back to default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MERIDIAN_KAFKA_BROKERS", "broker-a:9092,broker-b:9092")
	t.Setenv("MERIDIAN_SAGA_TIMEOUT", "90s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Infra.Kafka.Brokers) != 2 || cfg.Infra.Kafka.Brokers[0] != "broker-a:9092" {
		t.Fatalf("brokers=%v", cfg.Infra.Kafka.Brokers)
	}
	if cfg.Saga.Timeout != 90*time.Second {
		t.Fatalf("timeout=%v", cfg.Saga.Timeout)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("saga:\n  timeout: -1s\n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative timeout")
	}
}
