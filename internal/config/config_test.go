package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("QUEUE_REDIS_ADDR", "")

	cfg := Load()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.NotEqual(t, cfg.HTTPAddr, cfg.MetricsAddr)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, cfg.RedisAddr, cfg.QueueRedisAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10, cfg.InvoiceConcurrency)
	assert.False(t, cfg.MigrateOnStart)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("MIGRATE_ON_START", "true")
	t.Setenv("INVOICE_CONCURRENCY", "3")
	t.Setenv("REQUEST_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ADDR", ":9200")

	cfg := Load()

	assert.Equal(t, "cache:6380", cfg.QueueRedisAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, 3, cfg.InvoiceConcurrency)
	assert.Equal(t, 750*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, ":9200", cfg.MetricsAddr)
}

func TestLoad_IgnoresGarbage(t *testing.T) {
	t.Setenv("INVOICE_CONCURRENCY", "lots")
	t.Setenv("REQUEST_TIMEOUT", "-1s")

	cfg := Load()

	assert.Equal(t, 10, cfg.InvoiceConcurrency)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}
