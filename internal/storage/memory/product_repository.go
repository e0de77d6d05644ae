package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepository — in-memory реализация ProductRepository.
type productRepository struct {
	store *Store
	tx    *state
}

// Create сохраняет товар, если название ещё не занято.
func (r *productRepository) Create(ctx context.Context, in domain.NewProduct) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if errs := in.Validate(); len(errs) > 0 {
		return domain.Product{}, domain.JoinErrors(errs)
	}

	var product domain.Product
	err := r.store.write(r.tx, func(st *state) error {
		if _, exists := st.productByName[in.Name]; exists {
			return domain.ErrProductNameTaken
		}
		now := r.store.now()
		product = domain.Product{
			ID:        uuid.NewString(),
			Name:      in.Name,
			Price:     in.Price,
			Quantity:  in.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.products[product.ID] = product
		st.productByName[product.Name] = product.ID
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// FindByName возвращает товар по точному названию.
func (r *productRepository) FindByName(ctx context.Context, name string) (domain.Product, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, false, err
	}

	var (
		product domain.Product
		found   bool
	)
	_ = r.store.read(r.tx, func(st *state) error {
		id, ok := st.productByName[name]
		if !ok {
			return nil
		}
		product, found = st.products[id]
		return nil
	})
	return product, found, nil
}

// FindAllByID возвращает найденные товары, отсортированные по ID.
func (r *productRepository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []domain.Product
	_ = r.store.read(r.tx, func(st *state) error {
		result = collectProducts(st, ids)
		return nil
	})
	return result, nil
}

// FindAllByIDForUpdate внутри транзакции эквивалентен FindAllByID:
// WithinTx уже держит эксклюзивную блокировку всего хранилища.
func (r *productRepository) FindAllByIDForUpdate(ctx context.Context, ids []string) ([]domain.Product, error) {
	if r.tx == nil {
		return nil, domain.ErrNoTransaction
	}
	return r.FindAllByID(ctx, ids)
}

// UpdateQuantity списывает остатки; при нехватке не меняет ни одного товара.
func (r *productRepository) UpdateQuantity(ctx context.Context, updates []domain.QuantityUpdate) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated []domain.Product
	err := r.store.write(r.tx, func(st *state) error {
		ids := make([]string, 0, len(updates))
		for _, u := range updates {
			ids = append(ids, u.ID)
		}

		var err error
		updated, err = domain.ApplyQuantityUpdates(collectProducts(st, ids), updates, r.store.now())
		if err != nil {
			return err
		}
		for _, product := range updated {
			st.products[product.ID] = product
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func collectProducts(st *state, ids []string) []domain.Product {
	seen := make(map[string]struct{}, len(ids))
	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if product, ok := st.products[id]; ok {
			result = append(result, product)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

var _ domain.ProductRepository = (*productRepository)(nil)
