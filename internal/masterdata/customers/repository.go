package customers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, customer Customer) (Customer, error)
	Update(ctx context.Context, id int64, customer Customer) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const customerColumns = `id, name, tax_id, tax_id_type, email, phone, address, balance::text, active, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	var balance string
	err := row.Scan(&c.ID, &c.Name, &c.TaxID, &c.TaxIDType, &c.Email, &c.Phone, &c.Address,
		&balance, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, err
	}
	if c.Balance, err = decimal.NewFromString(balance); err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	filters = filters.Normalize()
	query := `SELECT ` + customerColumns + ` FROM customers WHERE active`
	countQuery := `SELECT COUNT(*) FROM customers WHERE active`
	args := []any{}
	countArgs := []any{}

	if filters.Search != "" {
		query += ` AND (name ILIKE $1 OR tax_id ILIKE $1)`
		countQuery += ` AND (name ILIKE $1 OR tax_id ILIKE $1)`
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	n := len(args)
	query += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, filters.Limit, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, customer Customer) (Customer, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO customers
(name, tax_id, tax_id_type, email, phone, address, balance, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, TRUE, $7, $7)
RETURNING id`,
		customer.Name, customer.TaxID, customer.TaxIDType, customer.Email, customer.Phone, customer.Address, now).Scan(&customer.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Customer{}, ErrDuplicateTaxID
		}
		return Customer{}, err
	}
	customer.Balance = decimal.Zero
	customer.Active = true
	customer.CreatedAt = now
	customer.UpdatedAt = now
	return customer, nil
}

// Update never touches the balance column; invoicing owns it.
func (r *repository) Update(ctx context.Context, id int64, customer Customer) error {
	tag, err := r.db.Exec(ctx, `UPDATE customers
SET name=$1, tax_id=$2, tax_id_type=$3, email=$4, phone=$5, address=$6, updated_at=NOW()
WHERE id=$7`,
		customer.Name, customer.TaxID, customer.TaxIDType, customer.Email, customer.Phone, customer.Address, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE customers SET active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
