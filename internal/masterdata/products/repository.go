package products

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
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, description, category, unit_price::text, purchase_cost::text, quantity_on_hand::text, tax_applicable, tax_rate::text, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var price, cost, qty, rate string
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category,
		&price, &cost, &qty, &p.TaxApplicable, &rate, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if err := decodeDecimals(&p, price, cost, qty, rate); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	filters = filters.Normalize()
	query := `SELECT ` + productColumns + ` FROM products WHERE active`
	countQuery := `SELECT COUNT(*) FROM products WHERE active`
	args := []any{}
	countArgs := []any{}

	if filters.Search != "" {
		query += ` AND (name ILIKE $1 OR code ILIKE $1)`
		countQuery += ` AND (name ILIKE $1 OR code ILIKE $1)`
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	n := len(args)
	query += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, filters.Limit, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO products
(code, name, description, category, unit_price, purchase_cost, quantity_on_hand, tax_applicable, tax_rate, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7, TRUE, $8, $8)
RETURNING id`,
		product.Code, product.Name, product.Description, product.Category,
		product.UnitPrice.String(), product.TaxApplicable, product.TaxRate.String(), now).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, ErrDuplicateCode
		}
		return Product{}, err
	}
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

// Update never touches quantity_on_hand or purchase_cost; those columns are
// owned by the inventory ledger.
func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products
SET code=$1, name=$2, description=$3, category=$4, unit_price=$5, tax_applicable=$6, tax_rate=$7, updated_at=NOW()
WHERE id=$8`,
		product.Code, product.Name, product.Description, product.Category,
		product.UnitPrice.String(), product.TaxApplicable, product.TaxRate.String(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeDecimals(p *Product, price, cost, qty, rate string) error {
	var err error
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return err
	}
	if p.PurchaseCost, err = decimal.NewFromString(cost); err != nil {
		return err
	}
	if p.QuantityOnHand, err = decimal.NewFromString(qty); err != nil {
		return err
	}
	p.TaxRate, err = decimal.NewFromString(rate)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
