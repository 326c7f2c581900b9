package tax

import "github.com/shopspring/decimal"

// RetentionConfig carries the statutory withholding percentages applied to
// informal purchases. The percentages track current regulation and are
// loaded from configuration rather than hard-coded.
type RetentionConfig struct {
	ITBISPct  decimal.Decimal
	IncomePct decimal.Decimal
}

// DefaultRetention returns the current statutory percentages: 75% of ITBIS
// and 10% of the subtotal.
func DefaultRetention() RetentionConfig {
	return RetentionConfig{
		ITBISPct:  decimal.NewFromInt(75),
		IncomePct: decimal.NewFromInt(10),
	}
}

// RetentionFromPercents builds a RetentionConfig from configured values.
func RetentionFromPercents(itbisPct, incomePct float64) RetentionConfig {
	return RetentionConfig{
		ITBISPct:  decimal.NewFromFloat(itbisPct),
		IncomePct: decimal.NewFromFloat(incomePct),
	}
}

// Withholdings is the informational retention breakdown for an informal
// purchase.
type Withholdings struct {
	ITBISRetained  decimal.Decimal
	IncomeRetained decimal.Decimal
}

// ComputeWithholdings applies the retention percentages to the purchase tax
// amount and subtotal respectively.
func ComputeWithholdings(subtotal, taxAmount decimal.Decimal, cfg RetentionConfig) Withholdings {
	return Withholdings{
		ITBISRetained:  taxAmount.Mul(cfg.ITBISPct).Div(oneHundred),
		IncomeRetained: subtotal.Mul(cfg.IncomePct).Div(oneHundred),
	}
}
