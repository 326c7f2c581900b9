// Package suppliers manages the supplier master. Informal suppliers are
// created on the fly by the purchasing module; this package covers the
// regular CRUD surface.
package suppliers

import (
	"time"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// Tax id document types accepted for suppliers.
const (
	TaxIDTypeRNC    = "RNC"
	TaxIDTypeCedula = "CEDULA"
)

// Supplier represents a supplier entity.
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"`
	TaxIDType string    `json:"tax_id_type"`
	Informal  bool      `json:"informal"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates an unknown supplier.
	ErrNotFound = shared.NewError(shared.KindNotFound, "supplier not found")
	// ErrDuplicateTaxID indicates the tax id is already registered.
	ErrDuplicateTaxID = shared.NewError(shared.KindStateConflict, "supplier tax id already exists")
)
