package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type customerRepository struct {
	q queryer
}

func (r *customerRepository) Create(ctx context.Context, in domain.NewCustomer) (domain.Customer, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := in.Validate(); len(errs) > 0 {
		return domain.Customer{}, domain.JoinErrors(errs)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	customer := domain.Customer{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, created_at)
		VALUES ($1,$2,$3,$4)
	`, customer.ID, customer.Name, customer.Email, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, domain.ErrCustomerEmailTaken
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	return customer, nil
}

func (r *customerRepository) FindByID(ctx context.Context, id string) (domain.Customer, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, false, nil
		}
		return domain.Customer{}, false, fmt.Errorf("select customer: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, true, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
