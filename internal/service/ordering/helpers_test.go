package ordering_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "ordering-test")
}

// countingTransactor считает открытые транзакции: товары читаются только внутри них.
type countingTransactor struct {
	next  domain.Transactor
	calls atomic.Int32
}

func (c *countingTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.TxRepositories) error) error {
	c.calls.Add(1)
	return c.next.WithinTx(ctx, fn)
}

type fixture struct {
	store   *memory.Store
	tx      *countingTransactor
	service *ordering.Service
}

func newFixture(t testing.TB, opts ...ordering.Option) *fixture {
	t.Helper()

	store := memory.NewStore()
	tx := &countingTransactor{next: store}
	base := []ordering.Option{
		ordering.WithLogger(quietLogger()),
		ordering.WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())),
	}
	return &fixture{
		store:   store,
		tx:      tx,
		service: ordering.New(store.Customers(), store.Orders(), tx, append(base, opts...)...),
	}
}

func (f *fixture) customer(t testing.TB, email string) domain.Customer {
	t.Helper()
	c, err := f.store.Customers().Create(context.Background(), domain.NewCustomer{Name: "Customer", Email: email})
	require.NoError(t, err)
	return c
}

func (f *fixture) product(t testing.TB, name, price string, qty int64) domain.Product {
	t.Helper()
	p, err := f.store.Products().Create(context.Background(), domain.NewProduct{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t testing.TB, id string) int64 {
	t.Helper()
	products, err := f.store.Products().FindAllByID(context.Background(), []string{id})
	require.NoError(t, err)
	require.Len(t, products, 1)
	return products[0].Quantity
}
