// Package fiscal owns NCF sequence ranges and fiscal number issuance.
package fiscal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// Well-known DGII document types.
const (
	DocTypeCredito     = "B01" // crédito fiscal
	DocTypeConsumo     = "B02" // consumo
	DocTypeGubernament = "B14" // regímenes especiales
	DocTypeExportacion = "E41" // comprobante electrónico
)

// SequenceRange is an authorised NCF range for one document type. Ranges are
// never deleted, only deactivated.
type SequenceRange struct {
	ID           int64      `json:"id"`
	DocumentType string     `json:"document_type"`
	RangeStart   string     `json:"range_start"`
	RangeEnd     string     `json:"range_end"`
	Cursor       string     `json:"cursor"`
	Exhausted    bool       `json:"exhausted"`
	Active       bool       `json:"active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IssuedNumber is the result of consuming one fiscal number.
type IssuedNumber struct {
	NCF              string     `json:"ncf"`
	DocumentType     string     `json:"document_type"`
	PercentRemaining float64    `json:"percent_remaining"`
	LowRemaining     bool       `json:"low_remaining"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// CreateRangeInput describes an administrative range registration.
type CreateRangeInput struct {
	DocumentType string
	RangeStart   string
	RangeEnd     string
	ExpiresAt    *time.Time
}

var (
	// ErrNoActiveRange indicates no active, non-exhausted range exists for
	// the document type.
	ErrNoActiveRange = shared.NewError(shared.KindStateConflict, "no active fiscal sequence range")
	// ErrRangeExpired indicates the active range's authorisation has lapsed.
	ErrRangeExpired = shared.NewError(shared.KindStateConflict, "fiscal sequence range expired")
	// ErrInvalidRange indicates malformed range bounds.
	ErrInvalidRange = shared.NewError(shared.KindValidation, "invalid fiscal sequence range")
	// ErrRangeNotFound indicates an unknown range id.
	ErrRangeNotFound = shared.NewError(shared.KindNotFound, "fiscal sequence range not found")
)

// splitNCF separates an NCF into its document-type prefix and numeric
// suffix. The prefix must match docType exactly.
func splitNCF(docType, ncf string) (n int64, width int, err error) {
	if !strings.HasPrefix(ncf, docType) {
		return 0, 0, fmt.Errorf("ncf %q does not carry prefix %q", ncf, docType)
	}
	suffix := ncf[len(docType):]
	if suffix == "" {
		return 0, 0, fmt.Errorf("ncf %q has no numeric suffix", ncf)
	}
	n, err = strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("ncf %q suffix not numeric: %w", ncf, err)
	}
	return n, len(suffix), nil
}

// formatNCF rebuilds an NCF from its parts, zero-padding to the range's
// suffix width.
func formatNCF(docType string, n int64, width int) string {
	return fmt.Sprintf("%s%0*d", docType, width, n)
}
