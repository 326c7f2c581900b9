// Package customers manages the customer master. The running balance column
// is owned by the invoicing module; CRUD here never writes it.
package customers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// Identification document types accepted for customers.
const (
	TaxIDTypeRNC      = "RNC"
	TaxIDTypeCedula   = "CEDULA"
	TaxIDTypePassport = "PASSPORT"
)

// Customer represents a customer entity.
type Customer struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	TaxID     string          `json:"tax_id,omitempty"`
	TaxIDType string          `json:"tax_id_type,omitempty"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	Address   string          `json:"address,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

var (
	// ErrNotFound indicates an unknown customer.
	ErrNotFound = shared.NewError(shared.KindNotFound, "customer not found")
	// ErrDuplicateTaxID indicates the tax id is already registered.
	ErrDuplicateTaxID = shared.NewError(shared.KindStateConflict, "customer tax id already exists")
)
