package products

import (
	"context"
	"errors"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, errors.New("invalid product ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetVariant(ctx context.Context, id int64) (Variant, error) {
	if id <= 0 {
		return Variant{}, errors.New("invalid variant ID")
	}
	return s.repo.GetVariant(ctx, id)
}

func (s *Service) ListVariants(ctx context.Context, productID int64) ([]Variant, error) {
	if productID <= 0 {
		return nil, errors.New("invalid product ID")
	}
	return s.repo.ListVariants(ctx, productID)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) CreateVariant(ctx context.Context, variant Variant) (Variant, error) {
	if err := s.validateVariant(variant); err != nil {
		return Variant{}, err
	}
	if _, err := s.repo.Get(ctx, variant.ProductID); err != nil {
		return Variant{}, err
	}
	return s.repo.CreateVariant(ctx, variant)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return errors.New("invalid product ID")
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid product ID")
	}
	return s.repo.Delete(ctx, id)
}

// ListLowStock returns stock holders at or below their alert threshold.
func (s *Service) ListLowStock(ctx context.Context, outletID int64) ([]LowStockItem, error) {
	return s.repo.ListLowStock(ctx, outletID)
}
