package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"lavka/internal/domain"
)

// PostgresStore хранилище на pgx. Активная транзакция прокидывается через
// контекст, вне транзакции запросы идут напрямую в пул.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore { return &PostgresStore{pool: pool} }

type pgTxKey struct{}

// querier общая часть pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// Migrate создаёт схему, если её ещё нет. Идентификаторы храним текстом:
// для сервиса это непрозрачные строки.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id       TEXT PRIMARY KEY,
			name     TEXT NOT NULL,
			sku      TEXT NOT NULL UNIQUE,
			price    NUMERIC(12,2) NOT NULL CHECK (price >= 0),
			quantity BIGINT NOT NULL CHECK (quantity >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id          TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			total       NUMERIC(14,2) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_lines (
			order_id   TEXT NOT NULL REFERENCES orders(id),
			product_id TEXT NOT NULL REFERENCES products(id),
			unit_price NUMERIC(12,2) NOT NULL,
			quantity   BIGINT NOT NULL CHECK (quantity > 0)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ensure interfaces
var _ ProductRepository = (*PostgresStore)(nil)

func (s *PostgresStore) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO products (id, name, sku, price, quantity) VALUES ($1, $2, $3, $4::numeric, $5)`,
		p.ID, p.Name, p.SKU, p.Price.String(), p.Quantity)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT id, name, sku, price::text, quantity FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT id, name, sku, price::text, quantity FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateQuantities пишет остатки условно: строка обновляется, только если
// текущий остаток совпал с прочитанным. Ноль затронутых строк значит, что
// кто-то успел изменить остаток, и весь пакет откатывается вместе с
// объемлющей транзакцией.
func (s *PostgresStore) UpdateQuantities(ctx context.Context, updates []StockUpdate) error {
	q := s.q(ctx)
	for _, u := range updates {
		tag, err := q.Exec(ctx,
			`UPDATE products SET quantity = $3 WHERE id = $1 AND quantity = $2`,
			u.ProductID, u.Expected, u.Quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStockConflict
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT id, name, sku, price::text, quantity FROM products
		 WHERE $1 = '' OR name ILIKE '%' || $1 || '%'`, f.NameSubstring)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &price, &p.Quantity); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	p.Price = d
	return &p, nil
}

// CustomerRepository implementation on wrapper type
type PostgresCustomers struct{ store *PostgresStore }

func NewPostgresCustomers(store *PostgresStore) *PostgresCustomers {
	return &PostgresCustomers{store: store}
}

var _ CustomerRepository = (*PostgresCustomers)(nil)

func (pc *PostgresCustomers) Create(ctx context.Context, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := pc.store.q(ctx).Exec(ctx,
		`INSERT INTO customers (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Email, c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (pc *PostgresCustomers) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := pc.store.q(ctx).QueryRow(ctx,
		`SELECT id, name, email, created_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// OrderRepository implementation on wrapper type
type PostgresOrders struct{ store *PostgresStore }

func NewPostgresOrders(store *PostgresStore) *PostgresOrders { return &PostgresOrders{store: store} }

var _ OrderRepository = (*PostgresOrders)(nil)

func (po *PostgresOrders) Create(ctx context.Context, o *domain.Order) error {
	o.ID = uuid.NewString()
	o.CreatedAt = time.Now().UTC()
	q := po.store.q(ctx)
	_, err := q.Exec(ctx,
		`INSERT INTO orders (id, customer_id, total, created_at) VALUES ($1, $2, $3::numeric, $4)`,
		o.ID, o.CustomerID, o.Total.String(), o.CreatedAt)
	if err != nil {
		return err
	}
	for _, l := range o.Lines {
		_, err := q.Exec(ctx,
			`INSERT INTO order_lines (order_id, product_id, unit_price, quantity) VALUES ($1, $2, $3::numeric, $4)`,
			o.ID, l.ProductID, l.UnitPrice.String(), l.Quantity)
		if err != nil {
			return err
		}
	}
	return nil
}

func (po *PostgresOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := po.store.q(ctx)
	var (
		o     domain.Order
		total string
	)
	err := q.QueryRow(ctx,
		`SELECT id, customer_id, total::text, created_at FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.CustomerID, &total, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT product_id, unit_price::text, quantity FROM order_lines WHERE order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l     domain.OrderLine
			price string
		)
		if err := rows.Scan(&l.ProductID, &price, &l.Quantity); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}

// PostgresTx транзакция поверх пула; открытый pgx.Tx кладётся в контекст
type PostgresTx struct{ pool *pgxpool.Pool }

func NewPostgresTx(pool *pgxpool.Pool) *PostgresTx { return &PostgresTx{pool: pool} }

var _ TxManager = (*PostgresTx)(nil)

func (t *PostgresTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	// rollback is a no-op after commit
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
