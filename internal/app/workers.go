package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

// newOutboxCleanup собирает воркер, удаляющий опубликованные события старше cfg.OutboxRetention.
// Нулевой срок хранения отключает очистку.
func newOutboxCleanup(cfg Config, repo domain.OutboxRetention, logger *log.Entry) *outbox.CleanupWorker {
	if repo == nil || cfg.OutboxRetention <= 0 {
		return nil
	}
	return outbox.NewCleanupWorker(
		repo,
		outbox.WithCleanupLogger(logger.WithField("component", "outbox-cleanup-worker")),
		outbox.WithCleanupInterval(cfg.OutboxCleanupInterval),
		outbox.WithCleanupBatchSize(cfg.OutboxCleanupBatchSize),
		outbox.WithRetention(cfg.OutboxRetention),
	)
}
