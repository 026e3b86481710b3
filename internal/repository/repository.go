package repository

import (
	"context"
	"errors"
	"strings"

	"lavka/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists возвращается при нарушении уникальности
var ErrAlreadyExists = errors.New("already exists")

// ErrStockConflict остаток товара изменился между чтением и записью
var ErrStockConflict = errors.New("stock conflict")

// StockUpdate новый остаток товара с проверкой ожидаемого значения.
// Запись применяется, только если текущий остаток равен Expected.
type StockUpdate struct {
	ProductID string
	Expected  int64
	Quantity  int64
}

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
}

// CustomerRepository интерфейс репозитория покупателей
type CustomerRepository interface {
	Create(ctx context.Context, c *domain.Customer) error
	FindByID(ctx context.Context, id string) (*domain.Customer, error)
}

// ProductRepository интерфейс репозитория товаров.
// FindAllByID возвращает только существующие товары: отсутствующие id просто
// не попадают в результат. UpdateQuantities применяет пакет целиком либо
// не применяет вовсе; несовпадение Expected даёт ErrStockConflict.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error)
	UpdateQuantities(ctx context.Context, updates []StockUpdate) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

// TxManager абстракция транзакции. Для in-memory — глобальная блокировка записи.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
