// Package products manages the product catalog. Stock figures live on the
// same row but belong to the inventory ledger; CRUD here never writes
// quantity_on_hand or purchase_cost.
package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// Product represents a catalog entry.
type Product struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	PurchaseCost   decimal.Decimal `json:"purchase_cost"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
	TaxApplicable  bool            `json:"tax_applicable"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

var (
	// ErrNotFound indicates an unknown product.
	ErrNotFound = shared.NewError(shared.KindNotFound, "product not found")
	// ErrDuplicateCode indicates the product code is already taken.
	ErrDuplicateCode = shared.NewError(shared.KindStateConflict, "product code already exists")
)
