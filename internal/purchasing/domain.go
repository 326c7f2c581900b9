// Package purchasing records merchandise intake. It resolves formal and
// informal suppliers, computes purchase totals and withholdings, and posts
// the inbound stock movements atomically with the purchase document.
package purchasing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// SupplierKind selects the resolution path for a purchase.
type SupplierKind string

const (
	// SupplierFormal references a registered supplier that issued its own NCF.
	SupplierFormal SupplierKind = "formal"
	// SupplierInformal is an unregistered provider identified by cédula.
	SupplierInformal SupplierKind = "informal"
)

// PurchaseType mirrors how the purchase is paid.
type PurchaseType string

const (
	PurchaseCash   PurchaseType = "cash"
	PurchaseCredit PurchaseType = "credit"
)

// SupplierPayload carries the caller-provided supplier data. Formal
// purchases fill SupplierID and FiscalNumber; informal ones fill Name and
// NationalID.
type SupplierPayload struct {
	Kind         SupplierKind
	SupplierID   int64
	FiscalNumber string
	Name         string
	NationalID   string
}

// ResolvedSupplier is the outcome of supplier resolution.
type ResolvedSupplier struct {
	SupplierID   int64
	TaxID        string
	FiscalNumber string
	Informal     bool
	Created      bool
}

// LineInput describes one purchased line.
type LineInput struct {
	ProductID     int64
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	TaxApplicable bool
	TaxRate       decimal.Decimal
}

// PurchaseLine is a persisted line with its computed amounts.
type PurchaseLine struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Purchase is the intake document.
type Purchase struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	SupplierID    int64           `json:"supplier_id"`
	SupplierTaxID string          `json:"supplier_tax_id"`
	FiscalNumber  string          `json:"fiscal_number"`
	Lines         []PurchaseLine  `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	PurchaseType  PurchaseType    `json:"purchase_type"`
	Status        string          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PurchaseInput is the direct-workflow request.
type PurchaseInput struct {
	Supplier     SupplierPayload
	Lines        []LineInput
	PurchaseType PurchaseType
	Notes        string
	ActorID      int64
}

// MovementPurchaseInput is the inventory-movement-triggered request. The
// originating movement is persisted first; the purchase derives its single
// line from the movement's quantity and cost.
type MovementPurchaseInput struct {
	ProductID     int64
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	TaxApplicable bool
	TaxRate       decimal.Decimal
	Supplier      SupplierPayload
	PurchaseType  PurchaseType
	Reason        string
	ActorID       int64
}

// PurchaseFilter narrows purchase listings.
type PurchaseFilter struct {
	SupplierID int64
	From       time.Time
	To         time.Time
	Limit      int
}

var (
	// ErrMissingFormalFields indicates a formal purchase without supplier id
	// or the supplier's invoice NCF.
	ErrMissingFormalFields = shared.NewError(shared.KindValidation, "formal purchases require supplier_id and fiscal_number")
	// ErrSupplierNotFound indicates the supplier id does not resolve.
	ErrSupplierNotFound = shared.NewError(shared.KindNotFound, "supplier not found")
	// ErrInvalidNationalID indicates the cédula is not 11 numeric digits.
	ErrInvalidNationalID = shared.NewError(shared.KindValidation, "national id must be 11 numeric digits")
	// ErrEmptyPurchase indicates a purchase with no lines.
	ErrEmptyPurchase = shared.NewError(shared.KindValidation, "purchase requires at least one line")
	// ErrPurchaseNotFound indicates an unknown purchase.
	ErrPurchaseNotFound = shared.NewError(shared.KindNotFound, "purchase not found")
	// ErrFiscalNumberTaken indicates a concurrent purchase already
	// committed the same informal fiscal number; the caller retries.
	ErrFiscalNumberTaken = shared.NewError(shared.KindStateConflict, "fiscal number already recorded")
)
