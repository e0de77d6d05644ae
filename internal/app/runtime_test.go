package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
)

func TestOpenRuntime_MemoryPlacesOrder(t *testing.T) {
	ctx := context.Background()
	logger := log.WithField("test", "runtime")

	rt, err := OpenRuntime(ctx, Config{StorageDriver: StorageDriverMemory}, logger)
	require.NoError(t, err)
	defer func() { require.NoError(t, rt.Close()) }()

	customer, err := rt.Catalog.RegisterCustomer(ctx, "Ada", "ada@example.com")
	require.NoError(t, err)
	product, err := rt.Catalog.RegisterProduct(ctx, "keyboard", decimal.RequireFromString("49.90"), 4)
	require.NoError(t, err)

	order, err := rt.Ordering.CreateOrder(ctx, ordering.CreateOrderRequest{
		CustomerID: customer.ID,
		Products:   []ordering.RequestedProduct{{ID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.True(t, order.Total.Equal(decimal.RequireFromString("149.70")))

	left, err := rt.Catalog.Products(ctx, []string{product.ID})
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.EqualValues(t, 1, left[0].Quantity)

	stats, err := rt.Outbox.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)

	_, err = rt.Ordering.CreateOrder(ctx, ordering.CreateOrderRequest{
		CustomerID: customer.ID,
		Products:   []ordering.RequestedProduct{{ID: product.ID, Quantity: 2}},
	})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
}

func TestOpenRuntime_UnsupportedDriver(t *testing.T) {
	_, err := OpenRuntime(context.Background(), Config{StorageDriver: "sqlite"}, nil)
	require.Error(t, err)
}

func TestRuntime_CloseNil(t *testing.T) {
	var rt *Runtime
	require.NoError(t, rt.Close())
}
