package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	store *Store
	tx    *state
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.store.write(r.tx, func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return domain.ErrOrderAlreadyExists
		}
		// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
		st.orders[order.ID] = copyOrder(order)
		return nil
	})
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	var (
		order domain.Order
		ok    bool
	)
	_ = r.store.read(r.tx, func(st *state) error {
		order, ok = st.orders[id]
		return nil
	})
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0)
	_ = r.store.read(r.tx, func(st *state) error {
		for _, order := range st.orders {
			if order.CustomerID != customerID {
				continue
			}
			result = append(result, copyOrder(order))
		}
		return nil
	})

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// copyOrder отвязывает слайс позиций; Customer хранилище не ведёт.
func copyOrder(order domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	order.Customer = domain.Customer{}
	return order
}

var _ domain.OrderRepository = (*orderRepository)(nil)
