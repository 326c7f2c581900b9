package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/platform/db"
)

// Repository persists purchases and their supplier lookups in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, db.Querier) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

func (r *Repository) SupplierByID(ctx context.Context, q db.Querier, id int64) (SupplierRecord, error) {
	var rec SupplierRecord
	err := q.QueryRow(ctx, `SELECT id, code, name, tax_id, tax_id_type, informal FROM suppliers WHERE id=$1 AND active`, id).
		Scan(&rec.ID, &rec.Code, &rec.Name, &rec.TaxID, &rec.TaxIDType, &rec.Informal)
	if errors.Is(err, pgx.ErrNoRows) {
		return SupplierRecord{}, fmt.Errorf("%w: id %d", ErrSupplierNotFound, id)
	}
	return rec, err
}

func (r *Repository) SupplierByTaxID(ctx context.Context, q db.Querier, taxID string) (SupplierRecord, error) {
	var rec SupplierRecord
	err := q.QueryRow(ctx, `SELECT id, code, name, tax_id, tax_id_type, informal FROM suppliers WHERE tax_id=$1`, taxID).
		Scan(&rec.ID, &rec.Code, &rec.Name, &rec.TaxID, &rec.TaxIDType, &rec.Informal)
	if errors.Is(err, pgx.ErrNoRows) {
		return SupplierRecord{}, ErrSupplierNotFound
	}
	return rec, err
}

func (r *Repository) LastSupplierCode(ctx context.Context, q db.Querier) (string, error) {
	var code string
	err := q.QueryRow(ctx, `SELECT code FROM suppliers ORDER BY code DESC LIMIT 1`).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

func (r *Repository) InsertSupplier(ctx context.Context, q db.Querier, rec SupplierRecord) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO suppliers
(code, name, tax_id, tax_id_type, informal, email, phone, address, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, '', '', '', TRUE, NOW(), NOW())
RETURNING id`,
		rec.Code, rec.Name, rec.TaxID, rec.TaxIDType, rec.Informal).Scan(&id)
	return id, err
}

// MaxFiscalWithPrefix returns the highest purchase fiscal number starting
// with prefix, or empty when none exist.
func (r *Repository) MaxFiscalWithPrefix(ctx context.Context, q db.Querier, prefix string) (string, error) {
	var fiscal string
	err := q.QueryRow(ctx, `SELECT fiscal_number FROM purchases WHERE fiscal_number LIKE $1 || '%' ORDER BY fiscal_number DESC LIMIT 1`, prefix).Scan(&fiscal)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return fiscal, err
}

func (r *Repository) LastPurchaseNumber(ctx context.Context, q db.Querier) (string, error) {
	var number string
	err := q.QueryRow(ctx, `SELECT number FROM purchases ORDER BY id DESC LIMIT 1`).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (r *Repository) InsertPurchase(ctx context.Context, q db.Querier, p Purchase) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO purchases
(number, supplier_id, supplier_tax_id, fiscal_number, subtotal, tax_total, grand_total, purchase_type, status, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`,
		p.Number, p.SupplierID, p.SupplierTaxID, p.FiscalNumber,
		p.Subtotal.String(), p.TaxTotal.String(), p.GrandTotal.String(),
		string(p.PurchaseType), p.Status, p.Notes, p.CreatedAt).Scan(&id)
	return id, err
}

// isUniqueViolation reports a PostgreSQL 23505. The partial unique index
// on informal fiscal numbers rejects the losing side of a concurrent
// max-scan.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repository) InsertLine(ctx context.Context, q db.Querier, purchaseID int64, line PurchaseLine) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO purchase_lines
(purchase_id, product_id, quantity, unit_cost, subtotal, tax_amount, total)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		purchaseID, line.ProductID, line.Quantity.String(), line.UnitCost.String(),
		line.Subtotal.String(), line.TaxAmount.String(), line.Total.String()).Scan(&id)
	return id, err
}

const purchaseColumns = `id, number, supplier_id, supplier_tax_id, fiscal_number, subtotal::text, tax_total::text, grand_total::text, purchase_type, status, notes, created_at`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var subtotal, taxTotal, grandTotal, purchaseType string
	err := row.Scan(&p.ID, &p.Number, &p.SupplierID, &p.SupplierTaxID, &p.FiscalNumber,
		&subtotal, &taxTotal, &grandTotal, &purchaseType, &p.Status, &p.Notes, &p.CreatedAt)
	if err != nil {
		return Purchase{}, err
	}
	p.PurchaseType = PurchaseType(purchaseType)
	if p.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return Purchase{}, err
	}
	if p.TaxTotal, err = decimal.NewFromString(taxTotal); err != nil {
		return Purchase{}, err
	}
	if p.GrandTotal, err = decimal.NewFromString(grandTotal); err != nil {
		return Purchase{}, err
	}
	return p, nil
}

func (r *Repository) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	p, err := scanPurchase(r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, ErrPurchaseNotFound
	}
	if err != nil {
		return Purchase{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, product_id, quantity::text, unit_cost::text, subtotal::text, tax_amount::text, total::text
FROM purchase_lines WHERE purchase_id=$1 ORDER BY id`, id)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var line PurchaseLine
		var qty, cost, sub, taxAmt, total string
		if err := rows.Scan(&line.ID, &line.ProductID, &qty, &cost, &sub, &taxAmt, &total); err != nil {
			return Purchase{}, err
		}
		if line.Quantity, err = decimal.NewFromString(qty); err != nil {
			return Purchase{}, err
		}
		if line.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return Purchase{}, err
		}
		if line.Subtotal, err = decimal.NewFromString(sub); err != nil {
			return Purchase{}, err
		}
		if line.TaxAmount, err = decimal.NewFromString(taxAmt); err != nil {
			return Purchase{}, err
		}
		if line.Total, err = decimal.NewFromString(total); err != nil {
			return Purchase{}, err
		}
		p.Lines = append(p.Lines, line)
	}
	return p, rows.Err()
}

func (r *Repository) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]Purchase, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+purchaseColumns+`
FROM purchases
WHERE ($1::bigint = 0 OR supplier_id=$1)
  AND created_at BETWEEN COALESCE(NULLIF($2::timestamptz, '0001-01-01'), '-infinity') AND COALESCE(NULLIF($3::timestamptz, '0001-01-01'), 'infinity')
ORDER BY created_at DESC, id DESC
LIMIT $4`, filter.SupplierID, filter.From, filter.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
