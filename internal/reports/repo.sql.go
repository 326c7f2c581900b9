package reports

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/platform/db"
)

// Repository reads committed documents and stores report snapshots in
// PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func mapIDType(taxIDType string) string {
	switch taxIDType {
	case "RNC":
		return IDTypeRNC
	case "CEDULA":
		return IDTypeCedula
	case "PASSPORT":
		return IDTypePassport
	default:
		return IDTypeCedula
	}
}

// SalesRecords builds 607 rows: non-voided invoices with an NCF in the
// period.
func (r *Repository) SalesRecords(ctx context.Context, period Period) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.tax_id, c.tax_id_type, i.fiscal_number, i.created_at, i.subtotal::text, i.tax_total::text
FROM invoices i
JOIN customers c ON c.id = i.customer_id
WHERE NOT i.voided
  AND i.fiscal_number IS NOT NULL
  AND i.created_at >= $1 AND i.created_at < $2
ORDER BY i.fiscal_number`, period.Start(), period.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var taxIDType, subtotal, taxTotal string
		if err := rows.Scan(&rec.TaxID, &taxIDType, &rec.FiscalNumber, &rec.Date, &subtotal, &taxTotal); err != nil {
			return nil, err
		}
		rec.IDType = mapIDType(taxIDType)
		rec.TypeCode = incomeTypeNormal
		if rec.Amount, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		if rec.TaxAmount, err = decimal.NewFromString(taxTotal); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PurchaseRecords builds 606 rows: purchases with a supplier fiscal number
// in the period.
func (r *Repository) PurchaseRecords(ctx context.Context, period Period) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.supplier_tax_id, s.tax_id_type, p.fiscal_number, p.created_at, p.subtotal::text, p.tax_total::text
FROM purchases p
JOIN suppliers s ON s.id = p.supplier_id
WHERE p.fiscal_number <> ''
  AND p.status <> 'cancelled'
  AND p.created_at >= $1 AND p.created_at < $2
ORDER BY p.fiscal_number`, period.Start(), period.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var taxIDType, subtotal, taxTotal string
		if err := rows.Scan(&rec.TaxID, &taxIDType, &rec.FiscalNumber, &rec.Date, &subtotal, &taxTotal); err != nil {
			return nil, err
		}
		rec.IDType = mapIDType(taxIDType)
		rec.TypeCode = goodsServicesType
		if rec.Amount, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		if rec.TaxAmount, err = decimal.NewFromString(taxTotal); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// VoidedRecords builds 608 rows: invoices voided within the period, keyed
// by void timestamp rather than issuance date.
func (r *Repository) VoidedRecords(ctx context.Context, period Period) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.fiscal_number, i.voided_at
FROM invoices i
WHERE i.voided
  AND i.fiscal_number IS NOT NULL
  AND i.voided_at >= $1 AND i.voided_at < $2
ORDER BY i.fiscal_number`, period.Start(), period.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.FiscalNumber, &rec.Date); err != nil {
			return nil, err
		}
		rec.TypeCode = annulmentReasonFix
		rec.Amount = decimal.Zero
		rec.TaxAmount = decimal.Zero
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Save replaces the stored rows for {type, month, year} with the fresh set,
// atomically.
func (r *Repository) Save(ctx context.Context, reportType string, period Period, records []Record) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM fiscal_report_records WHERE report_type=$1 AND year=$2 AND month=$3`,
			reportType, period.Year, int(period.Month)); err != nil {
			return fmt.Errorf("reports: clear period: %w", err)
		}
		for _, rec := range records {
			if _, err := tx.Exec(ctx, `INSERT INTO fiscal_report_records
(report_type, year, month, tax_id, id_type, fiscal_number, type_code, record_date, amount, tax_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				reportType, period.Year, int(period.Month),
				rec.TaxID, rec.IDType, rec.FiscalNumber, rec.TypeCode, rec.Date,
				rec.Amount.String(), rec.TaxAmount.String()); err != nil {
				return fmt.Errorf("reports: insert record: %w", err)
			}
		}
		return nil
	})
}
