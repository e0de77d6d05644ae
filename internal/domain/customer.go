package domain

import (
	"strings"
	"time"
)

// Customer — покупатель, на которого оформляются заказы.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// NewCustomer содержит данные для регистрации клиента.
type NewCustomer struct {
	Name  string
	Email string
}

// Validate проверяет обязательные поля клиента.
func (c NewCustomer) Validate() []error {
	var errs []error

	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if strings.TrimSpace(c.Email) == "" {
		errs = append(errs, ErrCustomerEmailRequired)
	}

	return errs
}
