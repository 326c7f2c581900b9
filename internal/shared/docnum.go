package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// Document number prefixes used by the sequential human-readable counters.
const (
	PrefixInvoice  = "INVOICE"
	PrefixPurchase = "PURCHASE"
	PrefixReceipt  = "RECEIPT"
	PrefixSupplier = "SUPPLIER"
)

const docNumWidth = 5

// NextDocumentNumber derives the next number in a PREFIX-00001 series from
// the last issued one. An empty last number starts the series at 1.
func NextDocumentNumber(prefix, last string) string {
	next := int64(1)
	if last != "" {
		if idx := strings.LastIndex(last, "-"); idx >= 0 {
			if n, err := strconv.ParseInt(last[idx+1:], 10, 64); err == nil {
				next = n + 1
			}
		}
	}
	return fmt.Sprintf("%s-%0*d", prefix, docNumWidth, next)
}
