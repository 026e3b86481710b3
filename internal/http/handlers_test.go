package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"lavka/internal/domain"
	"lavka/internal/events"
	"lavka/internal/metrics"
	"lavka/internal/repository"
	"lavka/internal/service"
)

type testFixture struct {
	srv        *Server
	customerID string
	p1, p2     string
}

func setupServer(t *testing.T) *testFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	customers := repository.NewMemoryCustomers(store)
	orders := repository.NewMemoryOrders(store)
	tx := repository.NewMemoryTx(store)

	catalog := service.NewCatalogService(customers, store)
	ordersSvc := service.NewOrderService(customers, store, orders, tx, events.NopPublisher{})
	srv := NewServer(catalog, ordersSvc, metrics.New("test"))

	ctx := context.Background()
	c := domain.Customer{Name: "John", Email: "john@example.com"}
	if err := customers.Create(ctx, &c); err != nil {
		t.Fatal(err)
	}
	p1 := domain.Product{Name: "Aspirin", SKU: "S1", Price: decimal.RequireFromString("10.00"), Quantity: 5}
	p2 := domain.Product{Name: "Paracetamol", SKU: "S2", Price: decimal.RequireFromString("20.00"), Quantity: 2}
	if err := store.Create(ctx, &p1); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, &p2); err != nil {
		t.Fatal(err)
	}
	return &testFixture{srv: srv, customerID: c.ID, p1: p1.ID, p2: p2.ID}
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestOrderFlow(t *testing.T) {
	f := setupServer(t)

	w := doJSON(t, f.srv, http.MethodPost, "/api/v1/orders", map[string]any{
		"customer_id": f.customerID,
		"items": []map[string]any{
			{"product_id": f.p1, "quantity": 2},
			{"product_id": f.p2, "quantity": 1},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %v %s", w.Code, w.Body.String())
	}
	var o domain.Order
	if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if len(o.Lines) != 2 || !o.Total.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("unexpected order body: %+v", o)
	}

	// get order back
	w = doJSON(t, f.srv, http.MethodGet, "/api/v1/orders/"+o.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get order: %v", w.Code)
	}

	// stock visible through the product endpoint
	w = doJSON(t, f.srv, http.MethodGet, "/api/v1/products/"+f.p1, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get product: %v", w.Code)
	}
	var p domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Quantity != 3 {
		t.Fatalf("product quantity expected 3, got %d", p.Quantity)
	}
}

func TestOrderRejections(t *testing.T) {
	f := setupServer(t)

	// unknown customer
	w := doJSON(t, f.srv, http.MethodPost, "/api/v1/orders", map[string]any{
		"customer_id": "nobody",
		"items":       []map[string]any{{"product_id": f.p1, "quantity": 1}},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown customer expected 404, got %v", w.Code)
	}

	// unknown product
	w = doJSON(t, f.srv, http.MethodPost, "/api/v1/orders", map[string]any{
		"customer_id": f.customerID,
		"items":       []map[string]any{{"product_id": "nothing", "quantity": 1}},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown product expected 404, got %v", w.Code)
	}
	if !strings.Contains(w.Body.String(), "nothing") {
		t.Fatalf("response must name the product: %s", w.Body.String())
	}

	// insufficient stock
	w = doJSON(t, f.srv, http.MethodPost, "/api/v1/orders", map[string]any{
		"customer_id": f.customerID,
		"items":       []map[string]any{{"product_id": f.p1, "quantity": 10}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("insufficient stock expected 400, got %v", w.Code)
	}

	// empty items
	w = doJSON(t, f.srv, http.MethodPost, "/api/v1/orders", map[string]any{
		"customer_id": f.customerID,
		"items":       []map[string]any{},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty items expected 400, got %v", w.Code)
	}

	// invalid json
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json expected 400, got %v", rec.Code)
	}

	// nothing was written along the way
	w = doJSON(t, f.srv, http.MethodGet, "/api/v1/products/"+f.p1, nil)
	var p domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Quantity != 5 {
		t.Fatalf("stock must stay 5, got %d", p.Quantity)
	}
}

func TestCustomerFlow(t *testing.T) {
	f := setupServer(t)

	w := doJSON(t, f.srv, http.MethodPost, "/api/v1/customers", map[string]any{
		"name": "Jane", "email": "jane@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %v %s", w.Code, w.Body.String())
	}
	var c domain.Customer
	if err := json.Unmarshal(w.Body.Bytes(), &c); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, f.srv, http.MethodGet, "/api/v1/customers/"+c.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get customer: %v", w.Code)
	}

	// duplicate email -> conflict
	w = doJSON(t, f.srv, http.MethodPost, "/api/v1/customers", map[string]any{
		"name": "Jane 2", "email": "jane@example.com",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate expected 409, got %v", w.Code)
	}

	// bad email
	w = doJSON(t, f.srv, http.MethodPost, "/api/v1/customers", map[string]any{
		"name": "X", "email": "not-an-email",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad email expected 400, got %v", w.Code)
	}

	w = doJSON(t, f.srv, http.MethodGet, "/api/v1/customers/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown customer expected 404, got %v", w.Code)
	}
}

func TestProductEndpoints(t *testing.T) {
	f := setupServer(t)

	w := doJSON(t, f.srv, http.MethodGet, "/api/v1/products?q=asp", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %v", w.Code)
	}
	var list []domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != f.p1 {
		t.Fatalf("filter expected only aspirin, got %+v", list)
	}

	w = doJSON(t, f.srv, http.MethodGet, "/api/v1/products/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown product expected 404, got %v", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupServer(t)

	w := doJSON(t, f.srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %v", w.Code)
	}

	w = doJSON(t, f.srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %v", w.Code)
	}
	if !strings.Contains(w.Body.String(), "lavka_test_orders_placed_total") {
		t.Fatalf("metrics body missing counters: %s", w.Body.String())
	}
}
