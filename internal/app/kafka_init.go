package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

// splitBrokers разбирает список брокеров через запятую, отбрасывая пустые элементы.
func splitBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// initKafkaProducer инициализирует Kafka producer, если brokers не пустой.
// Для пустого списка возвращает nil, nil: relay в этом случае отключён.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// logRelayDisabled сообщает, почему outbox relay не запущен.
func logRelayDisabled(logger *log.Entry, brokers string, producerErr error) {
	switch {
	case producerErr != nil:
		logger.WithError(producerErr).Warn("outbox relay disabled: kafka producer is unavailable, events stay in outbox")
	case len(splitBrokers(brokers)) == 0:
		logger.Info("outbox relay disabled: kafka brokers are not configured")
	default:
		logger.Warn("outbox relay disabled: outbox repository is not available")
	}
}

// newOutboxRelay собирает outbox worker, публикующий события заказов в Kafka.
// Без producer возвращает nil.
func newOutboxRelay(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	if producer == nil || repo == nil {
		return nil
	}

	topic := cfg.KafkaTopic
	if topic == "" {
		topic = kafka.TopicOrderEvents
	}
	dlq := cfg.KafkaDLQ
	if dlq == "" {
		dlq = kafka.TopicDeadLetterQueue
	}

	return outbox.NewWorker(
		repo,
		kafka.NewOutboxPublisher(producer, topic),
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, dlq, topic)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

// closeKafka закрывает Kafka producer, если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
