package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lavka/internal/domain"
	"lavka/internal/events"
	"lavka/internal/logging"
	"lavka/internal/repository"
)

// OrderService реализует оформление заказа: проверка покупателя и остатков,
// атомарное списание и сохранение заказа с зафиксированными ценами
type OrderService struct {
	customers repository.CustomerRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	tx        repository.TxManager
	events    events.Publisher
}

func NewOrderService(
	customers repository.CustomerRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	tx repository.TxManager,
	pub events.Publisher,
) *OrderService {
	return &OrderService{customers: customers, products: products, orders: orders, tx: tx, events: pub}
}

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrCustomerNotFound = errors.New("customer does not exist")
)

// ProductNotFoundError указывает, какой товар из запроса не найден
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s does not exist", e.ProductID)
}

// InsufficientStockError недостаточный остаток по конкретному товару
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("quantity of product %s is insufficient", e.ProductID)
}

// PlaceOrder проверяет покупателя и все позиции и применяет заказ как единое
// целое: либо все проверки проходят и новые остатки сохраняются одним пакетом
// вместе с заказом, либо внешнее состояние не меняется вовсе.
//
// Повторы одного product_id в запросе проверяются накопительно: каждая
// следующая позиция видит остаток уже за вычетом предыдущих. Запись остатков
// условна по прочитанному значению, поэтому параллельное оформление того же
// товара не может продать больше, чем есть (repository.ErrStockConflict).
func (s *OrderService) PlaceOrder(ctx context.Context, customerID string, lines []domain.OrderLineRequest) (*domain.Order, error) {
	if customerID == "" || len(lines) == 0 {
		return nil, ErrInvalidInput
	}
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			return nil, ErrInvalidInput
		}
	}

	start := time.Now()
	var created *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		customer, err := s.customers.FindByID(ctx, customerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCustomerNotFound
			}
			return err
		}

		// one batched fetch for the distinct ids
		ids := distinctIDs(lines)
		fetched, err := s.products.FindAllByID(ctx, ids)
		if err != nil {
			return err
		}
		type stock struct {
			price     decimal.Decimal
			read      int64
			remaining int64
		}
		byID := make(map[string]*stock, len(fetched))
		for _, p := range fetched {
			byID[p.ID] = &stock{price: p.Price, read: p.Quantity, remaining: p.Quantity}
		}

		// validate in request order against the progressively decremented remainder
		orderLines := make([]domain.OrderLine, 0, len(lines))
		total := decimal.Zero
		for _, l := range lines {
			st, ok := byID[l.ProductID]
			if !ok {
				return &ProductNotFoundError{ProductID: l.ProductID}
			}
			if st.remaining < l.Quantity {
				return &InsufficientStockError{ProductID: l.ProductID}
			}
			st.remaining -= l.Quantity
			orderLines = append(orderLines, domain.OrderLine{
				ProductID: l.ProductID,
				UnitPrice: st.price,
				Quantity:  l.Quantity,
			})
			total = total.Add(st.price.Mul(decimal.NewFromInt(l.Quantity)))
		}

		// commit the provisional decrements as one conditional batch
		updates := make([]repository.StockUpdate, 0, len(ids))
		for _, id := range ids {
			st := byID[id]
			updates = append(updates, repository.StockUpdate{
				ProductID: id,
				Expected:  st.read,
				Quantity:  st.remaining,
			})
		}
		if err := s.products.UpdateQuantities(ctx, updates); err != nil {
			return err
		}

		o := domain.Order{CustomerID: customer.ID, Lines: orderLines, Total: total}
		if err := s.orders.Create(ctx, &o); err != nil {
			return err
		}
		created = &o
		return nil
	})
	if err != nil {
		logging.Log(logging.Fields{
			Service:    "orders",
			CustomerID: customerID,
			Lines:      len(lines),
			Status:     "rejected",
			DurationMS: time.Since(start).Milliseconds(),
			Message:    err.Error(),
		})
		return nil, err
	}

	logging.Log(logging.Fields{
		Service:    "orders",
		OrderID:    created.ID,
		CustomerID: created.CustomerID,
		Lines:      len(created.Lines),
		Status:     "placed",
		DurationMS: time.Since(start).Milliseconds(),
	})
	s.publishPlaced(ctx, created)
	return created, nil
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	return s.orders.GetByID(ctx, id)
}

// publishPlaced шлёт событие после коммита; сбой публикации заказ не откатывает
func (s *OrderService) publishPlaced(ctx context.Context, o *domain.Order) {
	e := events.OrderPlaced{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Total:      o.Total.String(),
		Lines:      o.Lines,
		OccurredAt: o.CreatedAt,
	}
	if err := s.events.PublishOrderPlaced(ctx, e); err != nil {
		logging.Log(logging.Fields{
			Service: "orders",
			OrderID: o.ID,
			Status:  "publish_error",
			Message: err.Error(),
		})
	}
}

func distinctIDs(lines []domain.OrderLineRequest) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}
