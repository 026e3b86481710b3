package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer покупатель; для оформления заказа важен только факт существования
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Product представляет товар на складе
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// OrderLineRequest запрошенная позиция заказа
type OrderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// OrderLine позиция заказа; цена зафиксирована на момент оформления
type OrderLine struct {
	ProductID string          `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
}

// Order сущность заказа; после создания не изменяется
type Order struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Lines      []OrderLine     `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}
