package reports

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold strips diacritics. DGII filings reject non-ASCII bytes.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldASCII(s string) string {
	out, _, err := transform.String(asciiFold, s)
	if err != nil {
		return s
	}
	return out
}

// moneyCents renders a monetary value as a 12-digit zero-padded integer of
// cents. Rounding is half away from zero, never truncation.
func moneyCents(d decimal.Decimal) string {
	cents := d.Mul(decimal.NewFromInt(100)).Round(0)
	return fmt.Sprintf("%012d", cents.IntPart())
}

// reportDate renders YYYYMMDD.
func reportDate(r Record) string {
	return r.Date.Format("20060102")
}

// padTaxID left-pads the issuer RNC to 11 digits.
func padTaxID(taxID string) string {
	if len(taxID) >= 11 {
		return taxID
	}
	return strings.Repeat("0", 11-len(taxID)) + taxID
}

const crlf = "\r\n"

// Serialize renders a report in the statutory flat-text layout: one header
// line, then one pipe-delimited line per record, CRLF-terminated. The field
// order per type matches the regulator's schema and must not change.
func Serialize(reportType, issuerRNC string, period Period, records []Record) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%04d%02d%s", reportType, padTaxID(issuerRNC), period.Year, period.Month, crlf)

	for _, r := range records {
		var line string
		switch reportType {
		case Type606:
			line = strings.Join([]string{
				r.TaxID,
				r.IDType,
				r.TypeCode,
				r.FiscalNumber,
				reportDate(r),
				moneyCents(r.Amount),
				moneyCents(r.TaxAmount),
				moneyCents(decimal.Zero),
				moneyCents(decimal.Zero),
			}, "|")
		case Type607:
			line = strings.Join([]string{
				r.TaxID,
				r.IDType,
				r.FiscalNumber,
				r.TypeCode,
				reportDate(r),
				moneyCents(r.Amount),
				moneyCents(r.TaxAmount),
				moneyCents(decimal.Zero),
				moneyCents(decimal.Zero),
			}, "|")
		case Type608:
			line = strings.Join([]string{
				r.FiscalNumber,
				reportDate(r),
				r.TypeCode,
			}, "|")
		default:
			return "", ErrUnknownReportType
		}
		b.WriteString(foldASCII(line))
		b.WriteString(crlf)
	}
	return b.String(), nil
}

// FileName returns the export file name for a period, {type}_{yyyy}{mm}.txt.
func FileName(reportType string, period Period) string {
	return fmt.Sprintf("%s_%04d%02d.txt", reportType, period.Year, period.Month)
}
