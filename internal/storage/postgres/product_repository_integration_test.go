package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestProductRepository_PostgresCreateAndFind(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Products()
	ctx := context.Background()

	product := seedProductForIntegrationTest(t, store, "Lamp", "19.99", 4)

	found, ok, err := repo.FindByName(ctx, "Lamp")
	if err != nil || !ok {
		t.Fatalf("find by name: ok=%v err=%v", ok, err)
	}
	if found.ID != product.ID || !found.Price.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("unexpected product: %+v", found)
	}

	if _, ok, err := repo.FindByName(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing product, ok=%v err=%v", ok, err)
	}

	if _, err := repo.Create(ctx, domain.NewProduct{Name: "Lamp", Price: decimal.NewFromInt(1)}); !errors.Is(err, domain.ErrProductNameTaken) {
		t.Fatalf("expected ErrProductNameTaken, got %v", err)
	}

	all, err := repo.FindAllByID(ctx, []string{"missing", product.ID, product.ID})
	if err != nil {
		t.Fatalf("find all by id: %v", err)
	}
	if len(all) != 1 || all[0].ID != product.ID {
		t.Fatalf("unexpected products: %+v", all)
	}

	if _, err := repo.FindAllByIDForUpdate(ctx, []string{product.ID}); !errors.Is(err, domain.ErrNoTransaction) {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
}

func TestProductRepository_PostgresUpdateQuantity(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Products()
	ctx := context.Background()

	a := seedProductForIntegrationTest(t, store, "A", "1.00", 5)
	b := seedProductForIntegrationTest(t, store, "B", "1.00", 1)

	_, err := repo.UpdateQuantity(ctx, []domain.QuantityUpdate{{ID: a.ID, Delta: 2}, {ID: b.ID, Delta: 2}})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != b.ID || stockErr.Available != 1 || stockErr.Requested != 2 {
		t.Fatalf("unexpected stock error: %+v", stockErr)
	}

	// Списание A должно откатиться вместе с неудачным B.
	products, err := repo.FindAllByID(ctx, []string{a.ID})
	if err != nil {
		t.Fatalf("find a: %v", err)
	}
	if products[0].Quantity != 5 {
		t.Fatalf("expected quantity 5 after rollback, got %d", products[0].Quantity)
	}

	updated, err := repo.UpdateQuantity(ctx, []domain.QuantityUpdate{{ID: a.ID, Delta: 2}, {ID: a.ID, Delta: 3}})
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if len(updated) != 1 || updated[0].Quantity != 0 {
		t.Fatalf("unexpected updated products: %+v", updated)
	}
}

func TestStore_PostgresConcurrentDecrementsDoNotOversell(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	product := seedProductForIntegrationTest(t, store, "Limited", "5.00", 5)

	const workers = 12
	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(context.Background(), func(ctx context.Context, repos domain.TxRepositories) error {
				if _, err := repos.Products.FindAllByIDForUpdate(ctx, []string{product.ID}); err != nil {
					return err
				}
				_, err := repos.Products.UpdateQuantity(ctx, []domain.QuantityUpdate{{ID: product.ID, Delta: 1}})
				return err
			})
			if err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := success.Load(); got != 5 {
		t.Fatalf("expected 5 successful decrements, got %d", got)
	}
	products, err := store.Products().FindAllByID(context.Background(), []string{product.ID})
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if products[0].Quantity != 0 {
		t.Fatalf("expected stock 0, got %d", products[0].Quantity)
	}
}
