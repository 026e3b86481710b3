package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lavka/internal/domain"
)

// MemoryStore объединённое in-memory хранилище для dev-режима и тестов
type MemoryStore struct {
	mu            sync.RWMutex
	customersByID map[string]domain.Customer
	productsByID  map[string]domain.Product
	ordersByID    map[string]domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customersByID: make(map[string]domain.Customer),
		productsByID:  make(map[string]domain.Product),
		ordersByID:    make(map[string]domain.Order),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var _ ProductRepository = (*MemoryStore)(nil)

// CustomerRepository и OrderRepository реализованы обёртками MemoryCustomers и MemoryOrders

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (m *MemoryStore) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.productsByID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateQuantities(ctx context.Context, updates []StockUpdate) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	// check the whole batch before touching anything
	for _, u := range updates {
		p, ok := m.productsByID[u.ProductID]
		if !ok {
			return ErrNotFound
		}
		if p.Quantity != u.Expected {
			return ErrStockConflict
		}
	}
	for _, u := range updates {
		p := m.productsByID[u.ProductID]
		p.Quantity = u.Quantity
		m.productsByID[u.ProductID] = p
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if !containsIgnoreCase(p.Name, f.NameSubstring) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// CustomerRepository implementation on wrapper type
type MemoryCustomers struct{ store *MemoryStore }

func NewMemoryCustomers(store *MemoryStore) *MemoryCustomers { return &MemoryCustomers{store: store} }

var _ CustomerRepository = (*MemoryCustomers)(nil)

func (mc *MemoryCustomers) Create(ctx context.Context, c *domain.Customer) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	for _, existing := range mc.store.customersByID {
		if strings.EqualFold(existing.Email, c.Email) {
			return ErrAlreadyExists
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	mc.store.customersByID[c.ID] = *c
	return nil
}

func (mc *MemoryCustomers) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	c, ok := mc.store.customersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := c
	return &cp, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o.ID = uuid.NewString()
	o.CreatedAt = time.Now().UTC()
	stored := *o
	stored.Lines = append([]domain.OrderLine(nil), o.Lines...)
	mo.store.ordersByID[o.ID] = stored
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &cp, nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}
