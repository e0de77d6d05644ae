package ordering_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
)

func TestCreateOrder_Succeeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.customer(t, "c1@example.com")
	p1 := f.product(t, "P1", "10.00", 5)

	order, err := f.service.CreateOrder(ctx, ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products:   []ordering.RequestedProduct{{ID: p1.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, c1, order.Customer)
	require.Len(t, order.Items, 1)
	assert.Equal(t, p1.ID, order.Items[0].ProductID)
	assert.EqualValues(t, 3, order.Items[0].Quantity)
	assert.True(t, order.Items[0].Price.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("30.00")))

	assert.EqualValues(t, 2, f.stock(t, p1.ID))

	stored, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, c1.Email, stored.Customer.Email)
	assert.Len(t, stored.Items, 1)
}

func TestCreateOrder_InsufficientQuantityLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.customer(t, "c1@example.com")
	p1 := f.product(t, "P1", "10.00", 2)

	_, err := f.service.CreateOrder(ctx, ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products:   []ordering.RequestedProduct{{ID: p1.ID, Quantity: 3}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "P1", stockErr.ProductName)
	assert.EqualValues(t, 3, stockErr.Requested)
	assert.EqualValues(t, 2, stockErr.Available)

	assert.EqualValues(t, 2, f.stock(t, p1.ID))
	orders, err := f.store.Orders().ListByCustomer(ctx, c1.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_UnknownCustomerNeverTouchesProducts(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "10.00", 5)

	cases := map[string][]ordering.RequestedProduct{
		"valid products": {{ID: p1.ID, Quantity: 1}},
		"nil products":   nil,
		"bad quantity":   {{ID: p1.ID, Quantity: -1}},
	}
	for name, products := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
				CustomerID: "unknown",
				Products:   products,
			})
			require.ErrorIs(t, err, domain.ErrCustomerNotFound)
			assert.True(t, domain.IsNotFound(err))
			assert.Equal(t, "customer does not exist", err.Error())
		})
	}
	assert.Zero(t, f.tx.calls.Load(), "product store must not be queried")
}

func TestCreateOrder_EmptyProducts(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")

	for name, products := range map[string][]ordering.RequestedProduct{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
				CustomerID: c1.ID,
				Products:   products,
			})
			require.ErrorIs(t, err, domain.ErrProductsRequired)
			assert.True(t, domain.IsValidation(err))
			assert.Equal(t, "empty products", err.Error())
		})
	}
	assert.Zero(t, f.tx.calls.Load())
}

func TestCreateOrder_RequestValidation(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")
	p1 := f.product(t, "P1", "1.00", 5)

	cases := []struct {
		name     string
		products []ordering.RequestedProduct
		want     error
	}{
		{name: "zero quantity", products: []ordering.RequestedProduct{{ID: p1.ID, Quantity: 0}}, want: domain.ErrInvalidQuantity},
		{name: "negative quantity", products: []ordering.RequestedProduct{{ID: p1.ID, Quantity: -2}}, want: domain.ErrInvalidQuantity},
		{name: "blank id", products: []ordering.RequestedProduct{{ID: "  ", Quantity: 1}}, want: domain.ErrProductIDRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
				CustomerID: c1.ID,
				Products:   tc.products,
			})
			require.ErrorIs(t, err, tc.want)
			assert.True(t, domain.IsValidation(err))
		})
	}
	assert.EqualValues(t, 5, f.stock(t, p1.ID))
}

func TestCreateOrder_NoMatchingProducts(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")

	_, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products:   []ordering.RequestedProduct{{ID: "ghost", Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrProductsNotFound)
	assert.Equal(t, "no matching products", err.Error())
}

func TestCreateOrder_PartialMatchIsRejected(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")
	p1 := f.product(t, "P1", "1.00", 5)

	_, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products: []ordering.RequestedProduct{
			{ID: p1.ID, Quantity: 1},
			{ID: "ghost-b", Quantity: 1},
			{ID: "ghost-a", Quantity: 1},
		},
	})
	var missing *domain.MissingProductsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"ghost-a", "ghost-b"}, missing.IDs)
	assert.True(t, domain.IsNotFound(err))
	assert.EqualValues(t, 5, f.stock(t, p1.ID))
}

func TestCreateOrder_MergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")
	a := f.product(t, "A", "2.50", 10)
	b := f.product(t, "B", "1.00", 10)

	order, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products: []ordering.RequestedProduct{
			{ID: b.ID, Quantity: 1},
			{ID: a.ID, Quantity: 2},
			{ID: b.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, b.ID, order.Items[0].ProductID)
	assert.EqualValues(t, 4, order.Items[0].Quantity)
	assert.Equal(t, a.ID, order.Items[1].ProductID)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("9.00")))

	assert.EqualValues(t, 6, f.stock(t, b.ID))
	assert.EqualValues(t, 8, f.stock(t, a.ID))
}

func TestCreateOrder_DuplicatesCountedAgainstStock(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")
	a := f.product(t, "A", "1.00", 3)

	_, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products:   []ordering.RequestedProduct{{ID: a.ID, Quantity: 2}, {ID: a.ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientQuantity)
	assert.EqualValues(t, 3, f.stock(t, a.ID))
}

func TestCreateOrder_MergedQuantityOverflowIsRejected(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")
	p := f.product(t, "P", "1.00", 5)

	_, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products:   []ordering.RequestedProduct{{ID: p.ID, Quantity: math.MaxInt64}, {ID: p.ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, f.tx.calls.Load(), "request must be rejected before the transaction starts")
	assert.EqualValues(t, 5, f.stock(t, p.ID))
}

func TestCreateOrder_PriceIsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.customer(t, "c1@example.com")
	p1 := f.product(t, "P1", "10.00", 5)

	order, err := f.service.CreateOrder(ctx, ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products:   []ordering.RequestedProduct{{ID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// Мутация возвращённого заказа не влияет на сохранённый снимок.
	order.Items[0].Price = decimal.NewFromInt(999)
	stored, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].Price.Equal(decimal.RequireFromString("10.00")))
}

func TestCreateOrder_EnqueuesOrderCreatedEvent(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")
	p1 := f.product(t, "P1", "10.00", 5)

	order, err := f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
		CustomerID: c1.ID,
		Products:   []ordering.RequestedProduct{{ID: p1.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	pending := f.store.Outbox().AllPending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventTypeOrderCreated, pending[0].EventType)
	assert.Equal(t, order.ID, pending[0].AggregateID)

	var event domain.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &event))
	assert.Equal(t, c1.ID, event.CustomerID)
	assert.True(t, event.Total.Equal(decimal.RequireFromString("20.00")))
}

func TestCreateOrder_ConcurrentOrdersDoNotOversell(t *testing.T) {
	f := newFixture(t)
	c1 := f.customer(t, "c1@example.com")
	p1 := f.product(t, "P1", "10.00", 5)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateOrder(context.Background(), ordering.CreateOrderRequest{
				CustomerID: c1.ID,
				Products:   []ordering.RequestedProduct{{ID: p1.ID, Quantity: 3}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)
	}
	assert.Equal(t, 1, succeeded)
	assert.EqualValues(t, 2, f.stock(t, p1.ID))
}

func TestListCustomerOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.customer(t, "c1@example.com")
	p1 := f.product(t, "P1", "1.00", 5)

	for i := 0; i < 2; i++ {
		_, err := f.service.CreateOrder(ctx, ordering.CreateOrderRequest{
			CustomerID: c1.ID,
			Products:   []ordering.RequestedProduct{{ID: p1.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	orders, err := f.service.ListCustomerOrders(ctx, c1.ID, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, c1.ID, orders[0].Customer.ID)

	_, err = f.service.ListCustomerOrders(ctx, "unknown", 0)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	_, err = f.service.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestFailureReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: &domain.InsufficientStockError{}, want: metrics.ReasonInsufficientStock},
		{err: domain.ErrCustomerNotFound, want: metrics.ReasonNotFound},
		{err: &domain.MissingProductsError{IDs: []string{"x"}}, want: metrics.ReasonNotFound},
		{err: domain.ErrProductsRequired, want: metrics.ReasonValidation},
		{err: domain.ErrConcurrentUpdate, want: metrics.ReasonConflict},
		{err: errors.New("db down"), want: metrics.ReasonInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ordering.FailureReason(tc.err), tc.err.Error())
	}
}
