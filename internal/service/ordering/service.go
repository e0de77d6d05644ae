// Package ordering оформляет заказы: проверяет клиента и товары,
// списывает остатки и сохраняет заказ одной транзакцией.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/storefront/internal/service/ordering"

// RequestedProduct — запрошенный товар и количество.
type RequestedProduct struct {
	ID       string
	Quantity int64
}

// CreateOrderRequest — запрос на оформление заказа.
// Products == nil и пустой список обрабатываются одинаково.
type CreateOrderRequest struct {
	CustomerID string
	Products   []RequestedProduct
}

// Service оформляет заказы поверх репозиториев и Transactor.
type Service struct {
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	tx        domain.Transactor

	logger  *log.Entry
	metrics *metrics.OrderMetrics
	tracer  trace.Tracer
	retry   RetryConfig
	now     func() time.Time
	newID   func() string
}

// New создаёт сервис оформления заказов.
func New(customers domain.CustomerRepository, orders domain.OrderRepository, tx domain.Transactor, opts ...Option) *Service {
	s := &Service{
		customers: customers,
		orders:    orders,
		tx:        tx,
		logger:    log.WithField("component", "ordering"),
		tracer:    otel.Tracer(tracerName),
		retry:     DefaultRetryConfig(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewOrderMetrics()
	}
	return s
}

// CreateOrder проверяет запрос, блокирует товары, сохраняет заказ, списывает
// остатки и ставит событие order.created в outbox. Либо выполняется всё, либо ничего.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	start := time.Now()
	s.metrics.InFlightStarted()
	defer s.metrics.InFlightFinished()

	ctx, span := s.tracer.Start(ctx, "ordering.CreateOrder", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.requested_items", len(req.Products)),
	))
	defer span.End()

	order, err := s.createOrder(ctx, req)
	s.metrics.RecordCreateDuration(time.Since(start))
	if err != nil {
		reason := FailureReason(err)
		s.metrics.RecordOrderFailed(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)

		entry := s.logger.WithError(err).WithFields(log.Fields{
			"customer_id": req.CustomerID,
			"reason":      reason,
		})
		if reason == metrics.ReasonInternal {
			entry.Error("order creation failed")
		} else {
			entry.Warn("order rejected")
		}
		return domain.Order{}, err
	}

	var units int64
	for _, item := range order.Items {
		units += item.Quantity
	}
	s.metrics.RecordOrderCreated(units)
	span.SetAttributes(attribute.String("order.id", order.ID))
	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"items":       len(order.Items),
		"total":       order.Total.StringFixed(2),
	}).Info("order created")

	return order, nil
}

func (s *Service) createOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	customer, ok, err := s.customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("find customer: %w", err)
	}
	if !ok {
		return domain.Order{}, domain.ErrCustomerNotFound
	}

	lines, err := normalizeLines(req.Products)
	if err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.TxRepositories) error {
			placed, err := s.place(ctx, repos, customer, lines)
			if err != nil {
				return err
			}
			order = placed
			return nil
		})
	})
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// place выполняет шаги оформления внутри транзакции.
func (s *Service) place(ctx context.Context, repos domain.TxRepositories, customer domain.Customer, lines []RequestedProduct) (domain.Order, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
	}

	products, err := repos.Products.FindAllByIDForUpdate(ctx, ids)
	if err != nil {
		return domain.Order{}, fmt.Errorf("lock products: %w", err)
	}
	if len(products) == 0 {
		return domain.Order{}, domain.ErrProductsNotFound
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return domain.Order{}, &domain.MissingProductsError{IDs: missing}
	}

	now := s.now()
	items := make([]domain.OrderItem, 0, len(lines))
	updates := make([]domain.QuantityUpdate, 0, len(lines))
	for _, line := range lines {
		product := byID[line.ID]
		if product.Quantity < line.Quantity {
			return domain.Order{}, &domain.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Quantity,
			}
		}
		items = append(items, domain.OrderItem{
			ID:        s.newID(),
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     product.Price,
			CreatedAt: now,
		})
		updates = append(updates, domain.QuantityUpdate{ID: product.ID, Delta: line.Quantity})
	}

	order := domain.Order{
		ID:         s.newID(),
		CustomerID: customer.ID,
		Customer:   customer,
		Items:      items,
		Total:      domain.ItemsTotal(items),
		CreatedAt:  now,
	}
	if err := domain.JoinErrors(order.ValidateInvariants()); err != nil {
		return domain.Order{}, fmt.Errorf("build order: %w", err)
	}

	if err := repos.Orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	if _, err := repos.Products.UpdateQuantity(ctx, updates); err != nil {
		return domain.Order{}, fmt.Errorf("update stock: %w", err)
	}

	msg, err := domain.NewOrderCreatedMessage(order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("build order event: %w", err)
	}
	if _, err := repos.Outbox.Enqueue(ctx, msg); err != nil {
		return domain.Order{}, fmt.Errorf("enqueue order event: %w", err)
	}

	return order, nil
}

// normalizeLines проверяет позиции запроса и склеивает повторяющиеся ID,
// сохраняя порядок первого появления.
func normalizeLines(requested []RequestedProduct) ([]RequestedProduct, error) {
	if len(requested) == 0 {
		return nil, domain.ErrProductsRequired
	}

	index := make(map[string]int, len(requested))
	lines := make([]RequestedProduct, 0, len(requested))
	for _, r := range requested {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return nil, domain.ErrProductIDRequired
		}
		if r.Quantity <= 0 {
			return nil, fmt.Errorf("product %q: %w", id, domain.ErrInvalidQuantity)
		}
		if i, ok := index[id]; ok {
			if r.Quantity > math.MaxInt64-lines[i].Quantity {
				return nil, fmt.Errorf("product %q: %w", id, domain.ErrInvalidQuantity)
			}
			lines[i].Quantity += r.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, RequestedProduct{ID: id, Quantity: r.Quantity})
	}

	return lines, nil
}

// GetOrder возвращает заказ вместе с данными клиента.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return s.withCustomer(ctx, order)
}

// ListCustomerOrders возвращает заказы клиента, новые первыми.
func (s *Service) ListCustomerOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	customer, ok, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}

	orders, err := s.orders.ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Customer = customer
	}
	return orders, nil
}

func (s *Service) withCustomer(ctx context.Context, order domain.Order) (domain.Order, error) {
	customer, ok, err := s.customers.FindByID(ctx, order.CustomerID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("find customer: %w", err)
	}
	if ok {
		order.Customer = customer
	}
	return order, nil
}

// FailureReason сопоставляет ошибку CreateOrder с label метрики.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientQuantity):
		return metrics.ReasonInsufficientStock
	case domain.IsNotFound(err):
		return metrics.ReasonNotFound
	case domain.IsValidation(err):
		return metrics.ReasonValidation
	case domain.IsConflict(err):
		return metrics.ReasonConflict
	default:
		return metrics.ReasonInternal
	}
}
