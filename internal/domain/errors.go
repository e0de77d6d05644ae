package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Категории ошибок. Конкретные ошибки оборачивают одну из них,
// поэтому вызывающая сторона проверяет категорию через errors.Is.
var (
	// ErrNotFound — запрошенная сущность отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrValidation — запрос нарушает бизнес-правила.
	ErrValidation = errors.New("validation failed")
	// ErrConflict — операция конфликтует с текущим состоянием хранилища.
	ErrConflict = errors.New("conflict")
)

var (
	// ErrCustomerNotFound возвращается, если клиент с указанным ID не найден.
	ErrCustomerNotFound = newKindError(ErrNotFound, "customer does not exist")
	// ErrProductsNotFound возвращается, если ни один из запрошенных товаров не найден.
	ErrProductsNotFound = newKindError(ErrNotFound, "no matching products")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = newKindError(ErrNotFound, "order not found")

	// ErrProductsRequired — в запросе нет ни одного товара.
	ErrProductsRequired = newKindError(ErrValidation, "empty products")
	// ErrInsufficientQuantity — на складе меньше единиц, чем запрошено.
	ErrInsufficientQuantity = newKindError(ErrValidation, "insufficient quantity")
	// ErrInvalidQuantity — количество должно быть положительным (в заказе) или неотрицательным (на складе).
	ErrInvalidQuantity = newKindError(ErrValidation, "invalid quantity")
	// ErrInvalidPrice — цена товара не может быть отрицательной.
	ErrInvalidPrice = newKindError(ErrValidation, "price must be non-negative")
	// ErrPriceScale — цена хранится с точностью до копеек.
	ErrPriceScale = newKindError(ErrValidation, "price must have at most 2 decimal places")
	// ErrProductIDRequired — в позиции запроса не указан ID товара.
	ErrProductIDRequired = newKindError(ErrValidation, "product id is required")
	// ErrProductNameRequired — у товара должно быть название.
	ErrProductNameRequired = newKindError(ErrValidation, "product name is required")
	// ErrCustomerIDRequired — в запросе не указан клиент.
	ErrCustomerIDRequired = newKindError(ErrValidation, "customer id is required")
	// ErrCustomerNameRequired — у клиента должно быть имя.
	ErrCustomerNameRequired = newKindError(ErrValidation, "customer name is required")
	// ErrCustomerEmailRequired — у клиента должен быть email.
	ErrCustomerEmailRequired = newKindError(ErrValidation, "customer email is required")

	// ErrConcurrentUpdate — транзакция не прошла из-за конкурентного изменения тех же строк.
	ErrConcurrentUpdate = newKindError(ErrConflict, "concurrent update, retry the operation")
	// ErrProductNameTaken — товар с таким названием уже есть в каталоге.
	ErrProductNameTaken = newKindError(ErrConflict, "product name already exists")
	// ErrCustomerEmailTaken — клиент с таким email уже зарегистрирован.
	ErrCustomerEmailTaken = newKindError(ErrConflict, "customer email already exists")
	// ErrOrderAlreadyExists — заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = newKindError(ErrConflict, "order already exists")

	// ErrNoTransaction — метод требует открытой транзакции (WithinTx).
	ErrNoTransaction = errors.New("operation requires an active transaction")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// kindError — ошибка с собственным текстом, относящаяся к одной из категорий.
type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// InsufficientStockError описывает товар, которого не хватает на складе.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient quantity for product %q: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientQuantity }

// MissingProductsError перечисляет запрошенные ID, которых нет в каталоге.
type MissingProductsError struct {
	IDs []string
}

func (e *MissingProductsError) Error() string {
	ids := append([]string(nil), e.IDs...)
	sort.Strings(ids)
	return fmt.Sprintf("products do not exist: %s", strings.Join(ids, ", "))
}

func (e *MissingProductsError) Unwrap() error { return ErrNotFound }

// IsNotFound проверяет, относится ли ошибка к категории NotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation проверяет, относится ли ошибка к категории Validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict проверяет, относится ли ошибка к категории Conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
