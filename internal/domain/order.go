package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrItemsRequired — в заказе должна быть хотя бы одна позиция.
	ErrItemsRequired = newKindError(ErrValidation, "order must contain at least one item")
	// ErrItemProductRequired — позиция должна ссылаться на товар.
	ErrItemProductRequired = newKindError(ErrValidation, "order item must reference a product")
	// ErrTotalMismatch — сумма заказа не совпадает с суммой позиций.
	ErrTotalMismatch = newKindError(ErrValidation, "order total does not match items sum")
)

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID        string
	ProductID string
	// Quantity — количество купленных единиц.
	Quantity int64
	// Price — цена за единицу на момент оформления; дальнейшие изменения каталога её не меняют.
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Subtotal возвращает стоимость позиции: Quantity * Price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// Order агрегирует заказ клиента и его позиции.
type Order struct {
	ID         string
	CustomerID string
	// Customer заполняется сервисом при создании; хранилище восстанавливает только CustomerID.
	Customer  Customer
	Items     []OrderItem
	Total     decimal.Decimal
	CreatedAt time.Time
}

// ItemsTotal считает сумму по позициям заказа.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrInvalidPrice)
		}
	}
	if !ItemsTotal(o.Items).Equal(o.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// JoinErrors склеивает список замечаний в одну ошибку; nil для пустого списка.
func JoinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
