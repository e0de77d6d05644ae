package app

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска order-service.
type Config struct {
	GRPCAddr    string
	MetricsAddr string
	LogLevel    log.Level

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	// PostgresLockTimeout ограничивает ожидание row-lock внутри транзакции оформления заказа.
	PostgresLockTimeout time.Duration

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает relay.
	KafkaBrokers string
	KafkaTopic   string
	KafkaDLQ     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending — размер backlog, после которого /healthz отвечает degraded.
	OutboxMaxPending int

	// OutboxRetention — сколько хранить опубликованные события перед удалением.
	OutboxRetention        time.Duration
	OutboxCleanupInterval  time.Duration
	OutboxCleanupBatchSize int
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		LogLevel:            log.InfoLevel,
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		PostgresLockTimeout: 3 * time.Second,
		KafkaTopic:          "storefront.order.events",
		KafkaDLQ:            "storefront.dlq",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OutboxMaxPending:    1000,

		OutboxRetention:        24 * time.Hour,
		OutboxCleanupInterval:  10 * time.Minute,
		OutboxCleanupBatchSize: 500,
	}
}
