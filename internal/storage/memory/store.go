package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// state — всё содержимое in-memory хранилища. Внутри WithinTx изменяется копия,
// которая подменяет основное состояние только при успешном завершении.
type state struct {
	products      map[string]domain.Product
	productByName map[string]string
	customers     map[string]domain.Customer
	customerEmail map[string]string
	orders        map[string]domain.Order
	outbox        map[string]outboxRecord
	outboxSeq     int64
}

func newState() *state {
	return &state{
		products:      make(map[string]domain.Product),
		productByName: make(map[string]string),
		customers:     make(map[string]domain.Customer),
		customerEmail: make(map[string]string),
		orders:        make(map[string]domain.Order),
		outbox:        make(map[string]outboxRecord),
	}
}

// clone копирует карты. Значения (товары, заказы) не изменяются на месте,
// поэтому поверхностной копии достаточно.
func (s *state) clone() *state {
	c := &state{
		products:      make(map[string]domain.Product, len(s.products)),
		productByName: make(map[string]string, len(s.productByName)),
		customers:     make(map[string]domain.Customer, len(s.customers)),
		customerEmail: make(map[string]string, len(s.customerEmail)),
		orders:        make(map[string]domain.Order, len(s.orders)),
		outbox:        make(map[string]outboxRecord, len(s.outbox)),
		outboxSeq:     s.outboxSeq,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.productByName {
		c.productByName[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.customerEmail {
		c.customerEmail[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

// Store — in-memory хранилище для локальной разработки и тестов.
// Транзакции сериализуются одним мьютексом.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		state: newState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Products возвращает репозиторий товаров вне транзакции.
func (s *Store) Products() domain.ProductRepository {
	return &productRepository{store: s}
}

// Customers возвращает репозиторий клиентов.
func (s *Store) Customers() domain.CustomerRepository {
	return &customerRepository{store: s}
}

// Orders возвращает репозиторий заказов вне транзакции.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{store: s}
}

// Outbox возвращает outbox-репозиторий вне транзакции.
func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{store: s}
}

// WithinTx выполняет fn над копией состояния под эксклюзивной блокировкой.
// Репозитории, полученные через Products()/Orders() вне fn, внутри fn использовать нельзя:
// они ждут ту же блокировку.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.TxRepositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	repos := domain.TxRepositories{
		Products: &productRepository{store: s, tx: work},
		Orders:   &orderRepository{store: s, tx: work},
		Outbox:   &OutboxRepository{store: s, tx: work},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = work
	return nil
}

// read выполняет fn над состоянием транзакции либо под read-блокировкой.
func (s *Store) read(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// write выполняет fn над состоянием транзакции либо под эксклюзивной блокировкой.
// fn обязана сначала проверить все условия и только потом менять state.
func (s *Store) write(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

var _ domain.Transactor = (*Store)(nil)
