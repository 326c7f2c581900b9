package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextDocumentNumber(t *testing.T) {
	require.Equal(t, "INVOICE-00001", NextDocumentNumber(PrefixInvoice, ""))
	require.Equal(t, "INVOICE-00002", NextDocumentNumber(PrefixInvoice, "INVOICE-00001"))
	require.Equal(t, "RECEIPT-00100", NextDocumentNumber(PrefixReceipt, "RECEIPT-00099"))
	require.Equal(t, "SUPPLIER-100000", NextDocumentNumber(PrefixSupplier, "SUPPLIER-99999"))
}

func TestNextDocumentNumberMalformedLast(t *testing.T) {
	// A last number whose suffix does not parse restarts the series rather
	// than failing the workflow.
	require.Equal(t, "PURCHASE-00001", NextDocumentNumber(PrefixPurchase, "PURCHASE-XYZ"))
}
