package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
)

// Runtime — собранные сервисы поверх выбранного хранилища.
// Используется демоном и утилитами командной строки.
type Runtime struct {
	Catalog  *catalog.Service
	Ordering *ordering.Service
	Outbox   domain.OutboxRepository

	deps *runtimeDependencies
}

// OpenRuntime открывает хранилище и собирает сервисы каталога и заказов.
// Вызывающая сторона обязана закрыть Runtime.
func OpenRuntime(ctx context.Context, cfg Config, logger *log.Entry) (*Runtime, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return newRuntime(deps, logger), nil
}

func newRuntime(deps *runtimeDependencies, logger *log.Entry) *Runtime {
	return &Runtime{
		Catalog: catalog.New(deps.products, deps.customers, logger.WithField("component", "catalog")),
		Ordering: ordering.New(
			deps.customers,
			deps.orders,
			deps.transactor,
			ordering.WithLogger(logger.WithField("component", "ordering")),
			ordering.WithMetrics(metrics.NewOrderMetrics()),
		),
		Outbox: deps.outboxRepo,
		deps:   deps,
	}
}

// Close освобождает подключение к хранилищу.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	return r.deps.close()
}
