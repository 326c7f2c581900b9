package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/inventory"
	"github.com/larimar-erp/larimar-erp/internal/platform/db"
)

// Repository persists invoices, receivables and payments in PostgreSQL.
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

// CustomerForUpdate locks the customer row; the running balance is mutated
// inside sale, void and payment transactions.
func (r *Repository) CustomerForUpdate(ctx context.Context, q db.Querier, id int64) (CustomerRecord, error) {
	var rec CustomerRecord
	var balance string
	err := q.QueryRow(ctx, `SELECT id, name, tax_id, tax_id_type, balance::text FROM customers WHERE id=$1 AND active FOR UPDATE`, id).
		Scan(&rec.ID, &rec.Name, &rec.TaxID, &rec.TaxIDType, &balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerRecord{}, fmt.Errorf("%w: id %d", ErrCustomerNotFound, id)
	}
	if err != nil {
		return CustomerRecord{}, err
	}
	rec.Balance, err = decimal.NewFromString(balance)
	return rec, err
}

func (r *Repository) AdjustCustomerBalance(ctx context.Context, q db.Querier, id int64, delta decimal.Decimal) error {
	tag, err := q.Exec(ctx, `UPDATE customers SET balance=balance+$2, updated_at=NOW() WHERE id=$1`, id, delta.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (r *Repository) ProductForSale(ctx context.Context, q db.Querier, id int64) (ProductRecord, error) {
	var rec ProductRecord
	var price, rate string
	err := q.QueryRow(ctx, `SELECT id, code, name, unit_price::text, tax_applicable, tax_rate::text FROM products WHERE id=$1 AND active`, id).
		Scan(&rec.ID, &rec.Code, &rec.Name, &price, &rec.TaxApplicable, &rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductRecord{}, fmt.Errorf("%w: id %d", inventory.ErrProductNotFound, id)
	}
	if err != nil {
		return ProductRecord{}, err
	}
	if rec.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return ProductRecord{}, err
	}
	rec.TaxRate, err = decimal.NewFromString(rate)
	return rec, err
}

func (r *Repository) LastInvoiceNumber(ctx context.Context, q db.Querier) (string, error) {
	var number string
	err := q.QueryRow(ctx, `SELECT number FROM invoices ORDER BY id DESC LIMIT 1`).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (r *Repository) InsertInvoice(ctx context.Context, q db.Querier, inv Invoice) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO invoices
(number, fiscal_number, customer_id, subtotal, tax_total, discount, grand_total, amount_paid, balance_due, sale_type, status, voided, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12)
RETURNING id`,
		inv.Number, inv.FiscalNumber, inv.CustomerID,
		inv.Subtotal.String(), inv.TaxTotal.String(), inv.Discount.String(), inv.GrandTotal.String(),
		inv.AmountPaid.String(), inv.BalanceDue.String(),
		string(inv.SaleType), inv.Status, inv.CreatedAt).Scan(&id)
	return id, err
}

func (r *Repository) InsertLine(ctx context.Context, q db.Querier, invoiceID int64, line InvoiceLine) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO invoice_lines
(invoice_id, product_id, quantity, unit_price, discount, subtotal, tax_amount, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		invoiceID, line.ProductID, line.Quantity.String(), line.UnitPrice.String(), line.Discount.String(),
		line.Subtotal.String(), line.TaxAmount.String(), line.Total.String()).Scan(&id)
	return id, err
}

const invoiceColumns = `id, number, fiscal_number, customer_id, subtotal::text, tax_total::text, discount::text, grand_total::text, amount_paid::text, balance_due::text, sale_type, status, voided, COALESCE(void_reason, ''), voided_at, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var subtotal, taxTotal, discount, grandTotal, amountPaid, balanceDue, saleType string
	err := row.Scan(&inv.ID, &inv.Number, &inv.FiscalNumber, &inv.CustomerID,
		&subtotal, &taxTotal, &discount, &grandTotal, &amountPaid, &balanceDue,
		&saleType, &inv.Status, &inv.Voided, &inv.VoidReason, &inv.VoidedAt, &inv.CreatedAt)
	if err != nil {
		return Invoice{}, err
	}
	inv.SaleType = SaleType(saleType)
	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&inv.Subtotal, subtotal}, {&inv.TaxTotal, taxTotal}, {&inv.Discount, discount},
		{&inv.GrandTotal, grandTotal}, {&inv.AmountPaid, amountPaid}, {&inv.BalanceDue, balanceDue},
	} {
		if *pair.dst, err = decimal.NewFromString(pair.src); err != nil {
			return Invoice{}, err
		}
	}
	return inv, nil
}

func (r *Repository) loadLines(ctx context.Context, q db.Querier, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx, `SELECT id, product_id, quantity::text, unit_price::text, discount::text, subtotal::text, tax_amount::text, total::text
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		var qty, price, discount, sub, taxAmt, total string
		if err := rows.Scan(&line.ID, &line.ProductID, &qty, &price, &discount, &sub, &taxAmt, &total); err != nil {
			return nil, err
		}
		for _, pair := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&line.Quantity, qty}, {&line.UnitPrice, price}, {&line.Discount, discount},
			{&line.Subtotal, sub}, {&line.TaxAmount, taxAmt}, {&line.Total, total},
		} {
			if *pair.dst, err = decimal.NewFromString(pair.src); err != nil {
				return nil, err
			}
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// InvoiceForUpdate locks the invoice row and loads its lines.
func (r *Repository) InvoiceForUpdate(ctx context.Context, q db.Querier, id int64) (Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, fmt.Errorf("%w: id %d", ErrInvoiceNotFound, id)
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = r.loadLines(ctx, q, id)
	return inv, err
}

func (r *Repository) UpdateInvoicePayment(ctx context.Context, q db.Querier, id int64, amountPaid, balanceDue decimal.Decimal, status string) error {
	tag, err := q.Exec(ctx, `UPDATE invoices SET amount_paid=$2, balance_due=$3, status=$4 WHERE id=$1`,
		id, amountPaid.String(), balanceDue.String(), status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *Repository) MarkVoided(ctx context.Context, q db.Querier, id int64, reason string, at time.Time) error {
	tag, err := q.Exec(ctx, `UPDATE invoices SET voided=TRUE, status=$2, void_reason=$3, voided_at=$4 WHERE id=$1`,
		id, StatusVoided, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *Repository) InsertReceivable(ctx context.Context, q db.Querier, rec Receivable) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO receivables
(invoice_id, customer_id, original_amount, paid_amount, balance, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
		rec.InvoiceID, rec.CustomerID, rec.OriginalAmount.String(), rec.PaidAmount.String(),
		rec.Balance.String(), rec.Status).Scan(&id)
	return id, err
}

func (r *Repository) ReceivableForUpdate(ctx context.Context, q db.Querier, invoiceID int64) (Receivable, error) {
	var rec Receivable
	var original, paid, balance string
	err := q.QueryRow(ctx, `SELECT id, invoice_id, customer_id, original_amount::text, paid_amount::text, balance::text, status
FROM receivables WHERE invoice_id=$1 FOR UPDATE`, invoiceID).
		Scan(&rec.ID, &rec.InvoiceID, &rec.CustomerID, &original, &paid, &balance, &rec.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receivable{}, fmt.Errorf("receivable for invoice %d: %w", invoiceID, ErrInvoiceNotFound)
	}
	if err != nil {
		return Receivable{}, err
	}
	if rec.OriginalAmount, err = decimal.NewFromString(original); err != nil {
		return Receivable{}, err
	}
	if rec.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return Receivable{}, err
	}
	rec.Balance, err = decimal.NewFromString(balance)
	return rec, err
}

func (r *Repository) UpdateReceivable(ctx context.Context, q db.Querier, id int64, paid, balance decimal.Decimal, status string) error {
	_, err := q.Exec(ctx, `UPDATE receivables SET paid_amount=$2, balance=$3, status=$4 WHERE id=$1`,
		id, paid.String(), balance.String(), status)
	return err
}

func (r *Repository) LastReceiptNumber(ctx context.Context, q db.Querier) (string, error) {
	var number string
	err := q.QueryRow(ctx, `SELECT receipt_number FROM payments ORDER BY id DESC LIMIT 1`).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (r *Repository) InsertPayment(ctx context.Context, q db.Querier, p Payment) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO payments
(receipt_number, invoice_id, amount, method, received_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		p.ReceiptNumber, p.InvoiceID, p.Amount.String(), p.Method, p.ReceivedAt).Scan(&id)
	return id, err
}

// GetInvoice returns an invoice with its lines, outside any transaction.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, fmt.Errorf("%w: id %d", ErrInvoiceNotFound, id)
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = r.loadLines(ctx, r.pool, id)
	return inv, err
}

// ListInvoices reads recent invoices without lines, newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+`
FROM invoices
WHERE ($1::bigint = 0 OR customer_id=$1)
  AND ($2::text = '' OR status=$2)
  AND created_at BETWEEN COALESCE(NULLIF($3::timestamptz, '0001-01-01'), '-infinity') AND COALESCE(NULLIF($4::timestamptz, '0001-01-01'), 'infinity')
ORDER BY created_at DESC, id DESC
LIMIT $5`, filter.CustomerID, filter.Status, filter.From, filter.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
