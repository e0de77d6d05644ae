package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `id, name, price, quantity, created_at, updated_at`

type productRepository struct {
	store *Store
	q     queryer
	inTx  bool
}

// Create сохраняет товар; занятое название даёт domain.ErrProductNameTaken.
func (r *productRepository) Create(ctx context.Context, in domain.NewProduct) (domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if errs := in.Validate(); len(errs) > 0 {
		return domain.Product{}, domain.JoinErrors(errs)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	product := domain.Product{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Price:     in.Price,
		Quantity:  in.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, name, price, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, product.ID, product.Name, product.Price, product.Quantity, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, domain.ErrProductNameTaken
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}

	return product, nil
}

func (r *productRepository) FindByName(ctx context.Context, name string) (domain.Product, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE name = $1`, name)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, fmt.Errorf("select product by name: %w", err)
	}
	return product, true, nil
}

func (r *productRepository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	return r.findAll(ctx, ids, false)
}

// FindAllByIDForUpdate блокирует строки в порядке ID, чтобы конкурирующие
// транзакции не взаимоблокировались.
func (r *productRepository) FindAllByIDForUpdate(ctx context.Context, ids []string) ([]domain.Product, error) {
	if !r.inTx {
		return nil, domain.ErrNoTransaction
	}
	return r.findAll(ctx, ids, true)
}

func (r *productRepository) findAll(ctx context.Context, ids []string, forUpdate bool) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := r.q.QueryContext(ctx, query, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("select products: %w", classifyError(err))
	}
	defer rows.Close()

	products := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", classifyError(err))
	}

	return products, nil
}

// UpdateQuantity списывает остатки условным UPDATE: строка меняется только
// если на складе достаточно единиц. Вне транзакции открывает собственную.
func (r *productRepository) UpdateQuantity(ctx context.Context, updates []domain.QuantityUpdate) ([]domain.Product, error) {
	if !r.inTx {
		var updated []domain.Product
		err := r.store.WithinTx(ctx, func(ctx context.Context, repos domain.TxRepositories) error {
			var err error
			updated, err = repos.Products.UpdateQuantity(ctx, updates)
			return err
		})
		return updated, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	deltas := make(map[string]int64, len(updates))
	for _, u := range updates {
		deltas[u.ID] += u.Delta
	}
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now().UTC()
	updated := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		delta := deltas[id]
		row := r.q.QueryRowContext(ctx, `
			UPDATE products
			SET quantity = quantity - $2,
			    updated_at = $3
			WHERE id = $1
			  AND quantity >= $2
			RETURNING `+productColumns, id, delta, now)
		product, err := scanProduct(row)
		if err == nil {
			updated = append(updated, product)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update product quantity: %w", classifyError(err))
		}
		if err := r.insufficient(ctx, id, delta); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// insufficient возвращает InsufficientStockError для существующего товара
// и nil для неизвестного ID: такие товары пропускаются, как в FindAllByID.
func (r *productRepository) insufficient(ctx context.Context, id string, requested int64) error {
	row := r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("select product stock: %w", classifyError(err))
	}
	return &domain.InsufficientStockError{
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   requested,
		Available:   product.Quantity,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

var _ domain.ProductRepository = (*productRepository)(nil)
