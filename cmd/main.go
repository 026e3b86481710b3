package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"lavka/internal/config"
	"lavka/internal/domain"
	"lavka/internal/events"
	httpapi "lavka/internal/http"
	"lavka/internal/metrics"
	"lavka/internal/repository"
	"lavka/internal/service"

	_ "lavka/docs"
)

// @title Lavka Order API
// @version 1.0
// @description Order placement against a finite-stock catalog.
// @BasePath /api/v1
func main() {
	cfg := config.Read()

	var (
		customers repository.CustomerRepository
		products  repository.ProductRepository
		orders    repository.OrderRepository
		tx        repository.TxManager
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer pool.Close()
		store := repository.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("db migrate error: %v", err)
		}
		cancel()
		customers = repository.NewPostgresCustomers(store)
		products = store
		orders = repository.NewPostgresOrders(store)
		tx = repository.NewPostgresTx(pool)
	} else {
		store := repository.NewMemoryStore()
		customers = repository.NewMemoryCustomers(store)
		products = store
		orders = repository.NewMemoryOrders(store)
		tx = repository.NewMemoryTx(store)
		seedDemo(store, customers)
	}

	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		pub = kp
	}

	m := metrics.New("orders")
	catalogSvc := service.NewCatalogService(customers, products)
	ordersSvc := service.NewOrderService(customers, products, orders, tx, pub)

	srv := httpapi.NewServer(catalogSvc, ordersSvc, m)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Engine(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// seedDemo наполняет in-memory хранилище, чтобы сервис было чем потрогать без БД
func seedDemo(store *repository.MemoryStore, customers repository.CustomerRepository) {
	ctx := context.Background()
	c := domain.Customer{Name: "Demo Customer", Email: "demo@example.com"}
	if err := customers.Create(ctx, &c); err != nil {
		log.Printf("seed customer: %v", err)
		return
	}
	seed := []domain.Product{
		{Name: "Aspirin", SKU: "SKU-ASP", Price: decimal.RequireFromString("10.00"), Quantity: 5},
		{Name: "Paracetamol", SKU: "SKU-PAR", Price: decimal.RequireFromString("20.00"), Quantity: 2},
		{Name: "Ibuprofen", SKU: "SKU-IBU", Price: decimal.RequireFromString("7.50"), Quantity: 12},
	}
	for i := range seed {
		if err := store.Create(ctx, &seed[i]); err != nil {
			log.Printf("seed product: %v", err)
			return
		}
	}
	log.Printf("seeded demo data: customer %s, products %s %s %s", c.ID, seed[0].ID, seed[1].ID, seed[2].ID)
}
