// Command loadtest оформляет N конкурентных заказов на один товар и проверяет,
// что склад не уходит в минус, а проданные единицы совпадают с успешными заказами.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
)

type config struct {
	orders        int
	concurrency   int
	stock         int64
	quantity      int64
	price         decimal.Decimal
	timeout       time.Duration
	storageDriver app.StorageDriver
	dsn           string
	outputPath    string
}

var errOversold = errors.New("stock invariant violated")

func parseConfig(fs *flag.FlagSet, args []string, lookup func(string) (string, bool)) (config, error) {
	var cfg config
	var priceValue, driverValue string

	fs.IntVar(&cfg.orders, "orders", 400, "number of CreateOrder calls")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.Int64Var(&cfg.stock, "stock", 100, "initial stock of the contested product")
	fs.Int64Var(&cfg.quantity, "qty", 1, "units per order")
	fs.StringVar(&priceValue, "price", "9.99", "unit price")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-order timeout")
	fs.StringVar(&driverValue, "driver", "", "storage driver: memory|postgres (default: postgres if DSN is set)")
	fs.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: STOREFRONT_POSTGRES_DSN)")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if strings.TrimSpace(cfg.dsn) == "" {
		if v, ok := lookup("STOREFRONT_POSTGRES_DSN"); ok {
			cfg.dsn = strings.TrimSpace(v)
		}
	}
	switch strings.ToLower(strings.TrimSpace(driverValue)) {
	case "":
		cfg.storageDriver = app.StorageDriverMemory
		if cfg.dsn != "" {
			cfg.storageDriver = app.StorageDriverPostgres
		}
	case string(app.StorageDriverMemory):
		cfg.storageDriver = app.StorageDriverMemory
	case string(app.StorageDriverPostgres):
		cfg.storageDriver = app.StorageDriverPostgres
	default:
		return cfg, fmt.Errorf("unsupported driver: %s", driverValue)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(priceValue))
	if err != nil {
		return cfg, fmt.Errorf("parse price: %w", err)
	}
	cfg.price = price

	switch {
	case cfg.orders <= 0:
		return cfg, errors.New("orders must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.stock < 0:
		return cfg, errors.New("stock must be >= 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("qty must be > 0")
	case cfg.price.IsNegative():
		return cfg, errors.New("price must be >= 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.storageDriver == app.StorageDriverPostgres && cfg.dsn == "":
		return cfg, errors.New("postgres driver requires -dsn or STOREFRONT_POSTGRES_DSN")
	}

	return cfg, nil
}

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.WarnLevel)

	cfg, err := parseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := app.DefaultConfig()
	appCfg.StorageDriver = cfg.storageDriver
	appCfg.PostgresDSN = cfg.dsn

	rt, err := app.OpenRuntime(ctx, appCfg, log.WithField("component", "loadtest"))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "open storage: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	result, runErr := run(ctx, rt, cfg)
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if runErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", runErr)
		os.Exit(1)
	}
}

// run заводит клиента и товар с остатком cfg.stock, затем оформляет cfg.orders заказов
// из cfg.concurrency воркеров и сверяет итоговый остаток с числом успешных заказов.
func run(ctx context.Context, rt *app.Runtime, cfg config) (report, error) {
	runID := uuid.NewString()[:8]

	customer, err := rt.Catalog.RegisterCustomer(ctx, "loadtest "+runID, "loadtest+"+runID+"@example.com")
	if err != nil {
		return report{}, fmt.Errorf("register customer: %w", err)
	}
	product, err := rt.Catalog.RegisterProduct(ctx, "loadtest-product-"+runID, cfg.price, cfg.stock)
	if err != nil {
		return report{}, fmt.Errorf("register product: %w", err)
	}

	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup

	startedAt := time.Now()
	for worker := 0; worker < cfg.concurrency; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				placeOrder(ctx, rt, cfg, customer.ID, product.ID, col)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg.orders)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))

	left, err := rt.Catalog.Products(ctx, []string{product.ID})
	if err != nil || len(left) != 1 {
		return result, fmt.Errorf("reload product: %w", err)
	}
	orders, err := rt.Ordering.ListCustomerOrders(ctx, customer.ID, 0)
	if err != nil {
		return result, fmt.Errorf("list orders: %w", err)
	}

	result.Stock = checkStock(cfg, left[0].Quantity, result.Succeeded, len(orders))
	if result.Stock.Oversold || !result.Stock.Consistent {
		return result, fmt.Errorf("%w: %+v", errOversold, result.Stock)
	}
	return result, nil
}

func placeOrder(ctx context.Context, rt *app.Runtime, cfg config, customerID, productID string, col *collector) {
	orderCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	start := time.Now()
	_, err := rt.Ordering.CreateOrder(orderCtx, ordering.CreateOrderRequest{
		CustomerID: customerID,
		Products:   []ordering.RequestedProduct{{ID: productID, Quantity: cfg.quantity}},
	})
	outcome := outcomeOK
	if err != nil {
		outcome = ordering.FailureReason(err)
	}
	col.record(outcome, time.Since(start))
}

// checkStock сверяет остаток с успешными заказами: остаток не ниже нуля,
// продано ровно succeeded*qty, и товар распродан, если заказов хватало.
func checkStock(cfg config, final, succeeded int64, ordersSaved int) stockReport {
	sold := cfg.stock - final
	maxOrders := cfg.stock / cfg.quantity
	return stockReport{
		Initial:     cfg.stock,
		Final:       final,
		UnitsSold:   sold,
		Oversold:    final < 0 || succeeded > maxOrders,
		Consistent:  sold == succeeded*cfg.quantity && int64(ordersSaved) == succeeded,
		SoldOut:     final < cfg.quantity,
		OrdersSaved: ordersSaved,
	}
}

func dispatchJobs(ctx context.Context, jobs chan<- int, total int) {
	defer close(jobs)

	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			return
		case jobs <- i:
		}
	}
}
