// Command orderctl управляет каталогом и заказами напрямую через хранилище.
//
//	orderctl product add -name keyboard -price 49.90 -qty 10
//	orderctl customer add -name Ada -email ada@example.com
//	orderctl order create -customer <id> -item <product-id>:2 -item <product-id>:1
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	envStorageDriver = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN   = "STOREFRONT_POSTGRES_DSN"
	envLogLevel      = "STOREFRONT_LOG_LEVEL"
)

// Коды выхода по категориям ошибок.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsage      = 2
	exitNotFound   = 3
	exitValidation = 4
	exitConflict   = 5
)

func main() {
	_ = godotenv.Load()
	setupLogger(os.Getenv(envLogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(execute(ctx, os.Args[1:], os.LookupEnv))
}

// setupLogger по умолчанию оставляет только предупреждения: stdout занят JSON-выводом.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	if parsed, err := log.ParseLevel(strings.TrimSpace(level)); err == nil {
		log.SetLevel(parsed)
	}
}

func execute(ctx context.Context, args []string, lookup func(string) (string, bool)) int {
	if len(args) < 2 {
		usage()
		return exitUsage
	}

	cfg := storageConfig(lookup)
	rt, err := app.OpenRuntime(ctx, cfg, log.WithField("component", "orderctl"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "orderctl: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.WithError(err).Warn("failed to close storage")
		}
	}()

	if err := run(ctx, rt, args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "orderctl: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

// storageConfig выбирает хранилище: postgres при заданном DSN, иначе memory.
func storageConfig(lookup func(string) (string, bool)) app.Config {
	cfg := app.DefaultConfig()
	if dsn, ok := lookup(envPostgresDSN); ok && strings.TrimSpace(dsn) != "" {
		cfg.StorageDriver = app.StorageDriverPostgres
		cfg.PostgresDSN = strings.TrimSpace(dsn)
	}
	if driver, ok := lookup(envStorageDriver); ok && strings.TrimSpace(driver) != "" {
		cfg.StorageDriver = app.StorageDriver(strings.ToLower(strings.TrimSpace(driver)))
	}
	if cfg.StorageDriver == app.StorageDriverMemory {
		log.Warn("orderctl uses in-memory storage: data is lost on exit; set " + envPostgresDSN)
	}
	return cfg
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage):
		return exitUsage
	case domain.IsNotFound(err):
		return exitNotFound
	case domain.IsValidation(err):
		return exitValidation
	case domain.IsConflict(err):
		return exitConflict
	default:
		return exitFailure
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: orderctl <resource> <action> [flags]

  product add      -name NAME -price PRICE -qty N
  product get      -id ID | -name NAME
  customer add     -name NAME -email EMAIL
  order create     -customer ID -item PRODUCT_ID:QTY [-item ...]
  order get        -id ID
  order list       -customer ID [-limit N]

storage: `+envPostgresDSN+` selects postgres, otherwise in-memory
`)
}
