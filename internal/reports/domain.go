// Package reports builds and serializes the DGII 606, 607 and 608 fiscal
// reports from committed invoices and purchases. Saved reports are
// idempotent snapshots: regenerating a period replaces its rows.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// Report types as filed with the DGII.
const (
	Type606 = "606"
	Type607 = "607"
	Type608 = "608"
)

// Identification type codes used in 606/607 rows.
const (
	IDTypeRNC      = "1"
	IDTypeCedula   = "2"
	IDTypePassport = "3"
)

// Fixed operation codes.
const (
	incomeTypeNormal   = "01"
	goodsServicesType  = "02"
	annulmentReasonFix = "04"
)

// Period identifies a reporting month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Record is one denormalized report row. 608 rows only carry the fiscal
// number, the void date and the annulment code.
type Record struct {
	TaxID        string          `json:"tax_id,omitempty"`
	IDType       string          `json:"id_type,omitempty"`
	FiscalNumber string          `json:"fiscal_number"`
	TypeCode     string          `json:"type_code"`
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
}

// Report is a generated period snapshot plus its statutory encoding.
type Report struct {
	Type    string   `json:"type"`
	Period  Period   `json:"period"`
	Records []Record `json:"records"`
	Text    string   `json:"text"`
}

// BundleResult groups the three reports of one period.
type BundleResult struct {
	Sales     Report `json:"sales"`
	Purchases Report `json:"purchases"`
	Voided    Report `json:"voided"`
}

var (
	// ErrUnknownReportType indicates a type other than 606, 607 or 608.
	ErrUnknownReportType = shared.NewError(shared.KindValidation, "report type must be 606, 607 or 608")
	// ErrInvalidPeriod indicates an unusable year or month.
	ErrInvalidPeriod = shared.NewError(shared.KindValidation, "invalid report period")
)
