package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func sampleOrder(id, customerID, productID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{ID: id + "-item-1", ProductID: productID, Quantity: 2, Price: decimal.RequireFromString("10.50"), CreatedAt: createdAt},
		{ID: id + "-item-2", ProductID: productID, Quantity: 1, Price: decimal.RequireFromString("3.00"), CreatedAt: createdAt},
	}
	return domain.Order{
		ID:         id,
		CustomerID: customerID,
		Items:      items,
		Total:      domain.ItemsTotal(items),
		CreatedAt:  createdAt,
	}
}

func TestOrderRepository_PostgresCreateGetList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Orders()
	ctx := context.Background()

	customer := seedCustomerForIntegrationTest(t, store, "buyer@example.com")
	product := seedProductForIntegrationTest(t, store, "Widget", "10.50", 10)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("order-1", customer.ID, product.ID, now.Add(-2*time.Minute))
	order2 := sampleOrder("order-2", customer.ID, product.ID, now.Add(-time.Minute))

	if err := repo.Create(ctx, order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(ctx, order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(ctx, order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.CustomerID != customer.ID {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if !got.Total.Equal(decimal.RequireFromString("24.00")) {
		t.Fatalf("unexpected total: %s", got.Total)
	}
	if len(got.Items) != 2 || got.Items[0].ID != order1.Items[0].ID {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if errs := got.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("stored order violates invariants: %v", errs)
	}

	listed, err := repo.ListByCustomer(ctx, customer.ID, 1)
	if err != nil {
		t.Fatalf("list by customer with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByCustomer(ctx, customer.ID, 0)
	if err != nil {
		t.Fatalf("list by customer without limit: %v", err)
	}
	if len(all) != 2 || len(all[1].Items) != 2 {
		t.Fatalf("unexpected full list: %+v", all)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Orders()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	customer := seedCustomerForIntegrationTest(t, store, "dup@example.com")
	product := seedProductForIntegrationTest(t, store, "Gadget", "10.50", 1)
	order := sampleOrder("order-dup", customer.ID, product.ID, time.Now().UTC())

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := repo.Create(ctx, order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}
}
