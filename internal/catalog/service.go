package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	pkgerrors "github.com/freshmartsg/freshmart-backend/pkg/errors"
)

// Service exposes catalog reads for the storefront and writes for admins.
type Service interface {
	Get(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, category, search string) ([]models.Product, error)
	Create(ctx context.Context, input ProductInput) (*models.Product, error)
	Update(ctx context.Context, id int64, input ProductInput) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
	Replenish(ctx context.Context, id int64, qty int) (*models.Product, error)
	LowStock(ctx context.Context, threshold, limit int) ([]models.Product, error)
}

// ProductInput carries the writable product fields for admin CRUD.
type ProductInput struct {
	Name        string
	Description string
	Category    string
	ImageURL    string
	Price       decimal.Decimal
	Quantity    int
}

type service struct {
	repo *Repository
}

// NewService builds a catalog service around the repository.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, category, search string) ([]models.Product, error) {
	rows, err := s.repo.GetFiltered(ctx, category, search)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}
	return rows, nil
}

func (s *service) Create(ctx context.Context, input ProductInput) (*models.Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	product := &models.Product{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		ImageURL:    input.ImageURL,
		Price:       input.Price,
		Quantity:    input.Quantity,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id int64, input ProductInput) (*models.Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Name = input.Name
	product.Description = input.Description
	product.Category = input.Category
	product.ImageURL = input.ImageURL
	product.Price = input.Price
	product.Quantity = input.Quantity

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating product")
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting product")
	}
	return nil
}

func (s *service) Replenish(ctx context.Context, id int64, qty int) (*models.Product, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "replenish quantity must be positive")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.ReplenishStock(ctx, id, qty); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replenishing stock")
	}
	return s.Get(ctx, id)
}

func (s *service) LowStock(ctx context.Context, threshold, limit int) ([]models.Product, error) {
	rows, err := s.repo.LowStock(ctx, threshold, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing low stock")
	}
	return rows, nil
}

func validateInput(input ProductInput) error {
	if input.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product price must be non-negative")
	}
	if input.Quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product quantity must be non-negative")
	}
	return nil
}
