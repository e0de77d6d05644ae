package ordering_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
)

// Заказ либо проходит целиком и уменьшает остатки ровно на запрошенное,
// либо не меняет ничего.
func TestCreateOrder_AllOrNothingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		ctx := context.Background()
		customer := f.customer(t, "prop@example.com")

		n := rapid.IntRange(1, 4).Draw(rt, "products")
		products := make([]domain.Product, n)
		before := make(map[string]int64, n)
		for i := range products {
			stock := rapid.Int64Range(0, 10).Draw(rt, fmt.Sprintf("stock_%d", i))
			cents := rapid.Int64Range(0, 10_000).Draw(rt, fmt.Sprintf("price_%d", i))
			products[i] = f.product(t, fmt.Sprintf("product-%d", i), decimal.New(cents, -2).StringFixed(2), stock)
			before[products[i].ID] = stock
		}

		lines := rapid.IntRange(1, 6).Draw(rt, "lines")
		requested := make([]ordering.RequestedProduct, lines)
		wanted := make(map[string]int64)
		for i := range requested {
			p := products[rapid.IntRange(0, n-1).Draw(rt, fmt.Sprintf("line_product_%d", i))]
			q := rapid.Int64Range(1, 6).Draw(rt, fmt.Sprintf("line_qty_%d", i))
			requested[i] = ordering.RequestedProduct{ID: p.ID, Quantity: q}
			wanted[p.ID] += q
		}

		fits := true
		for id, q := range wanted {
			if q > before[id] {
				fits = false
			}
		}

		order, err := f.service.CreateOrder(ctx, ordering.CreateOrderRequest{CustomerID: customer.ID, Products: requested})

		if !fits {
			if err == nil {
				rt.Fatalf("expected insufficient stock for %v", wanted)
			}
			if !domain.IsValidation(err) {
				rt.Fatalf("expected validation error, got %v", err)
			}
			for id, stock := range before {
				if got := f.stock(t, id); got != stock {
					rt.Fatalf("stock of %s changed on failure: %d -> %d", id, stock, got)
				}
			}
			if len(f.store.Outbox().AllPending()) != 0 {
				rt.Fatalf("failed order must not enqueue events")
			}
			return
		}

		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(order.Items) == 0 || len(order.Items) != len(wanted) {
			rt.Fatalf("expected %d items, got %d", len(wanted), len(order.Items))
		}
		if errs := order.ValidateInvariants(); len(errs) != 0 {
			rt.Fatalf("order invariants violated: %v", errs)
		}
		for _, item := range order.Items {
			if item.Quantity <= 0 || item.Quantity > before[item.ProductID] {
				rt.Fatalf("item quantity %d out of range (stock %d)", item.Quantity, before[item.ProductID])
			}
		}
		for id, stock := range before {
			if got, want := f.stock(t, id), stock-wanted[id]; got != want {
				rt.Fatalf("stock of %s: expected %d, got %d", id, want, got)
			}
		}
	})
}
