package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale — число знаков после запятой в цене, совпадает с NUMERIC(12, 2) в схеме.
const PriceScale = 2

// Product — позиция каталога с текущей ценой и остатком на складе.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProduct содержит данные для регистрации товара в каталоге.
type NewProduct struct {
	Name     string
	Price    decimal.Decimal
	Quantity int64
}

// Validate проверяет данные нового товара и возвращает список замечаний.
func (p NewProduct) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrInvalidPrice)
	}
	if !p.Price.Equal(p.Price.Round(PriceScale)) {
		errs = append(errs, ErrPriceScale)
	}
	if p.Quantity < 0 {
		errs = append(errs, ErrInvalidQuantity)
	}

	return errs
}

// QuantityUpdate описывает списание delta единиц товара со склада.
type QuantityUpdate struct {
	ID    string
	Delta int64
}

// ApplyQuantityUpdates вычитает delta из остатков и возвращает обновлённые товары
// в порядке products. Отсутствующие в updates товары не меняются и не возвращаются.
// Уход остатка ниже нуля отклоняется с InsufficientStockError.
func ApplyQuantityUpdates(products []Product, updates []QuantityUpdate, now time.Time) ([]Product, error) {
	deltas := make(map[string]int64, len(updates))
	for _, u := range updates {
		deltas[u.ID] += u.Delta
	}

	updated := make([]Product, 0, len(products))
	for _, product := range products {
		delta, ok := deltas[product.ID]
		if !ok {
			continue
		}
		if product.Quantity-delta < 0 {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   delta,
				Available:   product.Quantity,
			}
		}
		product.Quantity -= delta
		product.UpdatedAt = now
		updated = append(updated, product)
	}

	return updated, nil
}
