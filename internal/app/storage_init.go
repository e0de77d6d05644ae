package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies — репозитории выбранного хранилища и его жизненный цикл.
type runtimeDependencies struct {
	products   domain.ProductRepository
	customers  domain.CustomerRepository
	orders     domain.OrderRepository
	outboxRepo domain.OutboxRepository
	retention  domain.OutboxRetention
	transactor domain.Transactor

	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// initRuntimeDependencies открывает хранилище согласно cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.StorageDriver))))
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("storage: in-memory")
		return &runtimeDependencies{
			products:   store.Products(),
			customers:  store.Customers(),
			orders:     store.Orders(),
			outboxRepo: store.Outbox(),
			retention:  store.Outbox(),
			transactor: store,
			storageChecker: healthcheck.NewSimpleChecker("storage", func(context.Context) error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, errors.New("postgres storage driver requires a DSN")
		}

		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}
		if cfg.PostgresLockTimeout > 0 {
			store.SetLockTimeout(cfg.PostgresLockTimeout)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			status, err := store.MigrationStatus(ctx)
			if err == nil {
				logger.WithFields(log.Fields{
					"version": status.Version,
					"applied": strings.Join(status.Applied, ","),
				}).Info("postgres schema is up to date")
			}
		}

		logger.Info("storage: postgres")
		return &runtimeDependencies{
			products:       store.Products(),
			customers:      store.Customers(),
			orders:         store.Orders(),
			outboxRepo:     store.Outbox(),
			retention:      store.OutboxRetention(),
			transactor:     store,
			storageChecker: healthcheck.NewSimpleChecker("storage", store.Ping),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}
