package customers

import (
	"context"
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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, internalShared.NewError(internalShared.KindValidation, "invalid customer id")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, customer Customer) (Customer, error) {
	if err := s.validate(customer); err != nil {
		return Customer{}, err
	}
	return s.repo.Create(ctx, customer)
}

func (s *Service) Update(ctx context.Context, id int64, customer Customer) error {
	if id <= 0 {
		return internalShared.NewError(internalShared.KindValidation, "invalid customer id")
	}
	if err := s.validate(customer); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, customer)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return internalShared.NewError(internalShared.KindValidation, "invalid customer id")
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) validate(customer Customer) error {
	if strings.TrimSpace(customer.Name) == "" {
		return internalShared.NewError(internalShared.KindValidation, "name is required")
	}
	if customer.TaxID != "" {
		switch customer.TaxIDType {
		case TaxIDTypeRNC, TaxIDTypeCedula, TaxIDTypePassport:
		default:
			return internalShared.NewError(internalShared.KindValidation, "tax_id_type must be RNC, CEDULA or PASSPORT")
		}
	}
	return nil
}
