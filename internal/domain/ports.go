package domain

import (
	"context"
	"time"
)

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	// Create сохраняет новый товар и присваивает ему ID.
	Create(ctx context.Context, product NewProduct) (Product, error)
	// FindByName возвращает товар по названию; ok=false, если такого нет.
	FindByName(ctx context.Context, name string) (product Product, ok bool, err error)
	// FindAllByID возвращает найденные товары, молча пропуская неизвестные ID.
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)
	// FindAllByIDForUpdate делает то же, что FindAllByID, но блокирует строки до конца транзакции.
	// Вне WithinTx возвращает ErrNoTransaction.
	FindAllByIDForUpdate(ctx context.Context, ids []string) ([]Product, error)
	// UpdateQuantity списывает delta с остатков и возвращает обновлённые товары.
	UpdateQuantity(ctx context.Context, updates []QuantityUpdate) ([]Product, error)
}

// CustomerRepository описывает хранилище клиентов.
type CustomerRepository interface {
	Create(ctx context.Context, customer NewCustomer) (Customer, error)
	// FindByID возвращает клиента; ok=false, если клиента нет.
	FindByID(ctx context.Context, id string) (customer Customer, ok bool, err error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе со всеми позициями либо не сохраняет ничего.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента (новые первыми) с ограничением limit, если он > 0.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxRetention удаляет опубликованные события, чтобы таблица outbox не росла бесконечно.
type OutboxRetention interface {
	// DeleteSentBefore удаляет до limit сообщений со статусом sent, опубликованных не позже before.
	DeleteSentBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// TxRepositories — набор репозиториев, работающих внутри одной транзакции.
type TxRepositories struct {
	Products ProductRepository
	Orders   OrderRepository
	Outbox   OutboxRepository
}

// Transactor выполняет fn атомарно: либо фиксируются все изменения, либо ни одного.
// Ошибка fn откатывает транзакцию и возвращается как есть.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
