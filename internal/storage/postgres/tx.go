package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultLockTimeout = 3 * time.Second

// SQLSTATE коды, которые означают конкурентный доступ к тем же строкам.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// queryer — общий интерфейс *sql.DB и *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithinTx выполняет fn в транзакции READ COMMITTED.
// Строки товаров блокируются через FindAllByIDForUpdate; ошибки блокировок
// и сериализации превращаются в domain.ErrConcurrentUpdate.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.TxRepositories) error) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", classifyError(err))
	}
	defer func() {
		// Паника в fn не должна оставлять транзакцию и соединение занятыми.
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.lockTimeout > 0 {
		// SET LOCAL не принимает параметры, значение форматируется в миллисекундах.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", classifyError(err))
		}
	}

	repos := domain.TxRepositories{
		Products: &productRepository{store: s, q: tx, inTx: true},
		Orders:   &orderRepository{store: s, q: tx, inTx: true},
		Outbox:   &outboxRepository{q: tx},
	}
	if err = fn(ctx, repos); err != nil {
		return classifyError(err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", classifyError(err))
	}
	return nil
}

// classifyError оборачивает ошибки конкурентного доступа в domain.ErrConcurrentUpdate,
// остальные возвращает без изменений.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return fmt.Errorf("%w: sqlstate %s", domain.ErrConcurrentUpdate, pgErr.Code)
		}
	}
	return err
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == sqlStateUniqueViolation
}

var _ domain.Transactor = (*Store)(nil)
