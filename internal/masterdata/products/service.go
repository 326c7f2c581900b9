package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/larimar-erp/larimar-erp/internal/masterdata/shared"
	internalShared "github.com/larimar-erp/larimar-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, internalShared.NewError(internalShared.KindValidation, "invalid product id")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return internalShared.NewError(internalShared.KindValidation, "invalid product id")
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return internalShared.NewError(internalShared.KindValidation, "invalid product id")
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) validate(product Product) error {
	if strings.TrimSpace(product.Code) == "" {
		return internalShared.NewError(internalShared.KindValidation, "code is required")
	}
	if strings.TrimSpace(product.Name) == "" {
		return internalShared.NewError(internalShared.KindValidation, "name is required")
	}
	if product.UnitPrice.IsNegative() {
		return internalShared.NewError(internalShared.KindValidation, "unit price cannot be negative")
	}
	if product.TaxRate.IsNegative() {
		return internalShared.NewError(internalShared.KindValidation, fmt.Sprintf("tax rate %s is not valid", product.TaxRate))
	}
	return nil
}
