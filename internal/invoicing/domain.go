// Package invoicing orchestrates sales: standard invoices, POS checkout,
// voiding with inventory reversal, and payment application. Every workflow
// runs in a single transaction; a failure anywhere rolls back the invoice,
// the stock movements and any consumed fiscal number together.
package invoicing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// SaleType mirrors how the sale is paid.
type SaleType string

const (
	SaleCash   SaleType = "cash"
	SaleCredit SaleType = "credit"
)

// Invoice lifecycle states. Voided is terminal.
const (
	StatusPending = "pending"
	StatusPartial = "partial"
	StatusPaid    = "paid"
	StatusVoided  = "voided"
)

// InvoiceLine is a persisted sale line with its computed amounts.
type InvoiceLine struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Invoice is the sale document. FiscalNumber is nil for sales issued
// without an NCF.
type Invoice struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	FiscalNumber *string         `json:"fiscal_number,omitempty"`
	CustomerID   int64           `json:"customer_id"`
	Lines        []InvoiceLine   `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxTotal     decimal.Decimal `json:"tax_total"`
	Discount     decimal.Decimal `json:"discount"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	BalanceDue   decimal.Decimal `json:"balance_due"`
	SaleType     SaleType        `json:"sale_type"`
	Status       string          `json:"status"`
	Voided       bool            `json:"voided"`
	VoidReason   string          `json:"void_reason,omitempty"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Receivable tracks the outstanding balance of a credit-sale invoice.
type Receivable struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoice_id"`
	CustomerID     int64           `json:"customer_id"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Balance        decimal.Decimal `json:"balance"`
	Status         string          `json:"status"`
}

// Receivable states.
const (
	ReceivableCurrent = "current"
	ReceivableSettled = "settled"
)

// Payment is a receipt against an invoice.
type Payment struct {
	ID            int64           `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	InvoiceID     int64           `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// LineInput describes one requested sale line. UnitPrice overrides the
// catalog price when non-nil.
type LineInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice *decimal.Decimal
	Discount  decimal.Decimal
}

// InvoiceInput is the standard sale request. FiscalDocType, when set,
// consumes an NCF of that document type inside the same transaction.
type InvoiceInput struct {
	CustomerID    int64
	Lines         []LineInput
	Discount      decimal.Decimal
	SaleType      SaleType
	FiscalDocType string
	ActorID       int64
}

// POSInput is the point-of-sale checkout request.
type POSInput struct {
	InvoiceInput
	AmountReceived decimal.Decimal
	Method         string
}

// POSResult carries the created invoice, its payment and the change due.
type POSResult struct {
	Invoice Invoice         `json:"invoice"`
	Payment Payment         `json:"payment"`
	Change  decimal.Decimal `json:"change"`
}

// PaymentInput applies a partial or full payment to an invoice.
type PaymentInput struct {
	InvoiceID int64
	Amount    decimal.Decimal
	Method    string
	ActorID   int64
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	CustomerID int64
	Status     string
	From       time.Time
	To         time.Time
	Limit      int
}

var (
	// ErrCustomerNotFound indicates an unknown customer reference.
	ErrCustomerNotFound = shared.NewError(shared.KindNotFound, "customer not found")
	// ErrEmptyInvoice indicates an invoice with no lines.
	ErrEmptyInvoice = shared.NewError(shared.KindValidation, "invoice requires at least one line")
	// ErrInvoiceNotFound indicates an unknown invoice.
	ErrInvoiceNotFound = shared.NewError(shared.KindNotFound, "invoice not found")
	// ErrAlreadyVoided indicates the invoice was voided before.
	ErrAlreadyVoided = shared.NewError(shared.KindStateConflict, "invoice is already voided")
	// ErrMissingReason indicates a void request without a reason.
	ErrMissingReason = shared.NewError(shared.KindValidation, "void reason is required")
	// ErrInvoiceVoided indicates a mutation attempt on a voided invoice.
	ErrInvoiceVoided = shared.NewError(shared.KindStateConflict, "invoice is voided")
	// ErrInsufficientPayment indicates POS cash below the grand total.
	ErrInsufficientPayment = shared.NewError(shared.KindStateConflict, "amount received is below the total")
	// ErrPOSCashOnly indicates a checkout attempt with a non-cash sale type.
	ErrPOSCashOnly = shared.NewError(shared.KindValidation, "pos sales are cash only")
	// ErrInvalidPaymentAmount indicates a payment outside (0, balance_due].
	ErrInvalidPaymentAmount = shared.NewError(shared.KindValidation, "payment must be positive and not exceed the balance due")
)
