// Package app собирает order-service: хранилище, сервисы, outbox relay,
// служебный HTTP и gRPC health.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Run поднимает order-service и блокируется до отмены ctx или ошибки gRPC-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithField("build", version.String()).Info("starting order-service")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(deps.outboxRepo, cfg.OutboxMaxPending))

	// Ошибка Kafka не фатальна: события копятся в outbox до следующего запуска.
	producer, producerErr := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	var workers sync.WaitGroup
	if relay := newOutboxRelay(cfg, deps.outboxRepo, producer, logger); relay != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			relay.Run(workerCtx)
		}()
	} else {
		logRelayDisabled(logger, cfg.KafkaBrokers, producerErr)
	}
	if cleanup := newOutboxCleanup(cfg, deps.retention, logger); cleanup != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			cleanup.Run(workerCtx)
		}()
	}
	defer func() {
		stopWorker()
		workers.Wait()
	}()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	grpcServer, healthServer := newGRPCServer(logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		stopGRPC(grpcServer, healthServer, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
