// Package tax computes line and document totals for invoices and purchases.
// All arithmetic is decimal; rounding happens only at persistence or
// serialization boundaries via RoundMoney.
package tax

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// LineInput describes a single document line before tax.
type LineInput struct {
	UnitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	Discount      decimal.Decimal
	TaxApplicable bool
	TaxRate       decimal.Decimal
}

// LineTotals is the computed breakdown for one line.
type LineTotals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// DocumentTotals aggregates all lines of a document.
type DocumentTotals struct {
	Subtotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal
}

// ComputeLine calculates subtotal, tax and total for a line.
func ComputeLine(in LineInput) LineTotals {
	subtotal := in.UnitPrice.Mul(in.Quantity).Sub(in.Discount)
	taxAmount := decimal.Zero
	if in.TaxApplicable {
		taxAmount = subtotal.Mul(in.TaxRate).Div(oneHundred)
	}
	return LineTotals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     subtotal.Add(taxAmount),
	}
}

// Aggregate sums line totals and applies a document-level discount to the
// grand total.
func Aggregate(lines []LineTotals, documentDiscount decimal.Decimal) DocumentTotals {
	var totals DocumentTotals
	for _, line := range lines {
		totals.Subtotal = totals.Subtotal.Add(line.Subtotal)
		totals.TaxTotal = totals.TaxTotal.Add(line.TaxAmount)
	}
	totals.GrandTotal = totals.Subtotal.Add(totals.TaxTotal).Sub(documentDiscount)
	return totals
}

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
