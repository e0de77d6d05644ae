package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type customerRepository struct {
	store *Store
}

// Create регистрирует клиента с уникальным email.
func (r *customerRepository) Create(ctx context.Context, in domain.NewCustomer) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := in.Validate(); len(errs) > 0 {
		return domain.Customer{}, domain.JoinErrors(errs)
	}

	var customer domain.Customer
	err := r.store.write(nil, func(st *state) error {
		if _, exists := st.customerEmail[in.Email]; exists {
			return domain.ErrCustomerEmailTaken
		}
		customer = domain.Customer{
			ID:        uuid.NewString(),
			Name:      in.Name,
			Email:     in.Email,
			CreatedAt: r.store.now(),
		}
		st.customers[customer.ID] = customer
		st.customerEmail[customer.Email] = customer.ID
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

// FindByID возвращает клиента по ID.
func (r *customerRepository) FindByID(ctx context.Context, id string) (domain.Customer, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, false, err
	}

	var (
		customer domain.Customer
		found    bool
	)
	_ = r.store.read(nil, func(st *state) error {
		customer, found = st.customers[id]
		return nil
	})
	return customer, found, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
