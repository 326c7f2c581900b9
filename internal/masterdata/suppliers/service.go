package suppliers

import (
	"context"
	"errors"
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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, internalShared.NewError(internalShared.KindValidation, "invalid supplier id")
	}
	return s.repo.Get(ctx, id)
}

// Create registers a formal supplier. Codes are assigned sequentially from
// the SUPPLIER series; clients never pick their own.
func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	if existing, err := s.repo.GetByTaxID(ctx, supplier.TaxID); err == nil {
		return existing, ErrDuplicateTaxID
	} else if !errors.Is(err, ErrNotFound) {
		return Supplier{}, err
	}
	last, err := s.repo.LastCode(ctx)
	if err != nil {
		return Supplier{}, err
	}
	supplier.Code = internalShared.NextDocumentNumber(internalShared.PrefixSupplier, last)
	supplier.Informal = false
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier) error {
	if id <= 0 {
		return internalShared.NewError(internalShared.KindValidation, "invalid supplier id")
	}
	if err := s.validate(supplier); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, supplier)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return internalShared.NewError(internalShared.KindValidation, "invalid supplier id")
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) validate(supplier Supplier) error {
	if strings.TrimSpace(supplier.Name) == "" {
		return internalShared.NewError(internalShared.KindValidation, "name is required")
	}
	if strings.TrimSpace(supplier.TaxID) == "" {
		return internalShared.NewError(internalShared.KindValidation, "tax_id is required")
	}
	switch supplier.TaxIDType {
	case TaxIDTypeRNC, TaxIDTypeCedula:
	default:
		return internalShared.NewError(internalShared.KindValidation, "tax_id_type must be RNC or CEDULA")
	}
	return nil
}
