package service

import (
	"context"
	"strings"

	"lavka/internal/domain"
	"lavka/internal/repository"
)

// CatalogService читающий доступ к каталогу и регистрация покупателей.
// Управления товарами здесь нет: цены и ассортимент меняет внешняя система.
type CatalogService struct {
	customers repository.CustomerRepository
	products  repository.ProductRepository
}

func NewCatalogService(customers repository.CustomerRepository, products repository.ProductRepository) *CatalogService {
	return &CatalogService{customers: customers, products: products}
}

func (s *CatalogService) RegisterCustomer(ctx context.Context, name, email string) (*domain.Customer, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidInput
	}
	c := domain.Customer{Name: name, Email: email}
	if err := s.customers.Create(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CatalogService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	return s.customers.FindByID(ctx, id)
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	return s.products.GetByID(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	return s.products.List(ctx, f)
}
