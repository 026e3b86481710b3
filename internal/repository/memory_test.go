package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"lavka/internal/domain"
)

func seedProduct(t *testing.T, store *MemoryStore, name string, qty int64) string {
	t.Helper()
	p := domain.Product{Name: name, SKU: "SKU-" + name, Price: decimal.RequireFromString("10.00"), Quantity: qty}
	if err := store.Create(context.Background(), &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	return p.ID
}

func TestMemoryStore_Products(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id := seedProduct(t, store, "A", 5)
	if id == "" {
		t.Fatalf("no id assigned")
	}

	got, err := store.GetByID(ctx, id)
	if err != nil || got.ID != id {
		t.Fatalf("get: %v", err)
	}
	// returned value is a copy
	got.Quantity = 0
	again, _ := store.GetByID(ctx, id)
	if again.Quantity != 5 {
		t.Fatalf("stored product mutated through the returned copy")
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_FindAllByID_SkipsMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := seedProduct(t, store, "A", 5)
	b := seedProduct(t, store, "B", 2)

	out, err := store.FindAllByID(ctx, []string{a, "missing", b})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 products, got %d", len(out))
	}
}

func TestMemoryStore_UpdateQuantities(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := seedProduct(t, store, "A", 5)
	b := seedProduct(t, store, "B", 2)

	err := store.UpdateQuantities(ctx, []StockUpdate{
		{ProductID: a, Expected: 5, Quantity: 3},
		{ProductID: b, Expected: 2, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	pa, _ := store.GetByID(ctx, a)
	pb, _ := store.GetByID(ctx, b)
	if pa.Quantity != 3 || pb.Quantity != 1 {
		t.Fatalf("quantities not applied: %d %d", pa.Quantity, pb.Quantity)
	}

	// expected mismatch rejects the whole batch, including the valid entry
	err = store.UpdateQuantities(ctx, []StockUpdate{
		{ProductID: a, Expected: 3, Quantity: 2},
		{ProductID: b, Expected: 99, Quantity: 0},
	})
	if !errors.Is(err, ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict, got %v", err)
	}
	pa, _ = store.GetByID(ctx, a)
	pb, _ = store.GetByID(ctx, b)
	if pa.Quantity != 3 || pb.Quantity != 1 {
		t.Fatalf("conflicting batch must not touch anything: %d %d", pa.Quantity, pb.Quantity)
	}

	// unknown product
	err = store.UpdateQuantities(ctx, []StockUpdate{{ProductID: "missing", Expected: 0, Quantity: 0}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTx_TransactionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	orders := NewMemoryOrders(store)
	id := seedProduct(t, store, "A", 5)

	// emulate atomic order placement with a conditional stock write
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := store.UpdateQuantities(ctx, []StockUpdate{{ProductID: id, Expected: p.Quantity, Quantity: p.Quantity - 3}}); err != nil {
			return err
		}
		o := domain.Order{
			CustomerID: "c1",
			Lines:      []domain.OrderLine{{ProductID: id, UnitPrice: p.Price, Quantity: 3}},
			Total:      p.Price.Mul(decimal.NewFromInt(3)),
		}
		return orders.Create(ctx, &o)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	p, _ := store.GetByID(context.Background(), id)
	if p.Quantity != 2 {
		t.Fatalf("stock expected 2, got %v", p.Quantity)
	}
}

func TestMemoryCustomers_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	customers := NewMemoryCustomers(store)

	c := domain.Customer{Name: "John", Email: "john@example.com"}
	if err := customers.Create(ctx, &c); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := domain.Customer{Name: "Johnny", Email: "John@Example.com"}
	if err := customers.Create(ctx, &dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := customers.FindByID(ctx, c.ID)
	if err != nil || got.Email != "john@example.com" {
		t.Fatalf("find: %v %+v", err, got)
	}
}

func TestMemoryOrders_CopyIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)

	lines := []domain.OrderLine{{ProductID: "p1", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2}}
	o := domain.Order{CustomerID: "c1", Lines: lines, Total: decimal.RequireFromString("20.00")}
	if err := orders.Create(ctx, &o); err != nil {
		t.Fatalf("create: %v", err)
	}

	// mutating the caller's slice must not reach the stored order
	lines[0].Quantity = 99
	got, err := orders.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Lines[0].Quantity != 2 {
		t.Fatalf("stored order mutated through the input slice")
	}
}

func TestList_Filtering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedProduct(t, store, "Aspirin", 1)
	seedProduct(t, store, "Paracetamol", 1)
	seedProduct(t, store, "Ibuprofen", 1)

	list, _ := store.List(ctx, ProductFilter{NameSubstring: "in"})
	if len(list) == 0 {
		t.Fatalf("name filter empty")
	}
	for _, p := range list {
		if !containsIgnoreCase(p.Name, "in") {
			t.Fatalf("filter leak: %s", p.Name)
		}
	}

	all, _ := store.List(ctx, ProductFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 products, got %d", len(all))
	}
}
