package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service регистрирует товары и клиентов.
type Service struct {
	products  domain.ProductRepository
	customers domain.CustomerRepository
	logger    *log.Entry
}

// New создаёт сервис каталога; nil logger заменяется логгером по умолчанию.
func New(products domain.ProductRepository, customers domain.CustomerRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{products: products, customers: customers, logger: logger}
}

// RegisterProduct добавляет товар в каталог. Название должно быть уникальным,
// цена и количество неотрицательными.
func (s *Service) RegisterProduct(ctx context.Context, name string, price decimal.Decimal, quantity int64) (domain.Product, error) {
	in := domain.NewProduct{Name: strings.TrimSpace(name), Price: price, Quantity: quantity}
	if err := domain.JoinErrors(in.Validate()); err != nil {
		return domain.Product{}, err
	}

	if _, exists, err := s.products.FindByName(ctx, in.Name); err != nil {
		return domain.Product{}, fmt.Errorf("find product by name: %w", err)
	} else if exists {
		return domain.Product{}, domain.ErrProductNameTaken
	}

	product, err := s.products.Create(ctx, in)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
		"price":      product.Price.StringFixed(2),
		"quantity":   product.Quantity,
	}).Info("product registered")
	return product, nil
}

// RegisterCustomer регистрирует клиента с уникальным email.
func (s *Service) RegisterCustomer(ctx context.Context, name, email string) (domain.Customer, error) {
	customer, err := s.customers.Create(ctx, domain.NewCustomer{Name: name, Email: email})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.WithField("customer_id", customer.ID).Info("customer registered")
	return customer, nil
}

// LookupProduct ищет товар по названию; отсутствие — domain.ErrNotFound.
func (s *Service) LookupProduct(ctx context.Context, name string) (domain.Product, error) {
	product, ok, err := s.products.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return domain.Product{}, fmt.Errorf("find product by name: %w", err)
	}
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}
	return product, nil
}

// Products возвращает найденные по ID товары; неизвестные ID пропускаются.
func (s *Service) Products(ctx context.Context, ids []string) ([]domain.Product, error) {
	return s.products.FindAllByID(ctx, ids)
}

// Customer возвращает клиента по ID или domain.ErrCustomerNotFound.
func (s *Service) Customer(ctx context.Context, id string) (domain.Customer, error) {
	customer, ok, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("find customer: %w", err)
	}
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}
