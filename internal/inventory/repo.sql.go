package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL. Monetary and quantity
// columns are NUMERIC; values cross the wire as strings to keep decimal
// precision.
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

// GetProductForUpdate locks the product row for the transaction. The row
// lock serialises concurrent movements on the same product.
func (r *Repository) GetProductForUpdate(ctx context.Context, q db.Querier, productID int64) (ProductStock, error) {
	var p ProductStock
	var qty, avg string
	err := q.QueryRow(ctx, `SELECT id, code, name, quantity_on_hand::text, purchase_cost::text
FROM products
WHERE id=$1
FOR UPDATE`, productID).Scan(&p.ID, &p.Code, &p.Name, &qty, &avg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductStock{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return ProductStock{}, err
	}
	if p.QuantityOnHand, err = decimal.NewFromString(qty); err != nil {
		return ProductStock{}, err
	}
	if p.AverageCost, err = decimal.NewFromString(avg); err != nil {
		return ProductStock{}, err
	}
	return p, nil
}

// UpdateStock writes the new quantity and moving-average cost.
func (r *Repository) UpdateStock(ctx context.Context, q db.Querier, productID int64, qty, avgCost decimal.Decimal) error {
	tag, err := q.Exec(ctx, `UPDATE products SET quantity_on_hand=$2, purchase_cost=$3, updated_at=NOW() WHERE id=$1`,
		productID, qty.String(), avgCost.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// InsertMovement appends one immutable movement row.
func (r *Repository) InsertMovement(ctx context.Context, q db.Querier, m Movement) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO inventory_movements
(code, product_id, direction, quantity, unit_cost, reference_document, reason, actor_id, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		m.Code, m.ProductID, string(m.Direction), m.Quantity.String(), m.UnitCost.String(),
		m.ReferenceDocument, m.Reason, m.ActorID, m.PostedAt).Scan(&id)
	return id, err
}

// ListMovements reads the audit trail, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, product_id, direction, quantity::text, unit_cost::text, reference_document, reason, actor_id, posted_at
FROM inventory_movements
WHERE ($1::bigint = 0 OR product_id=$1)
  AND posted_at BETWEEN COALESCE(NULLIF($2::timestamptz, '0001-01-01'), '-infinity') AND COALESCE(NULLIF($3::timestamptz, '0001-01-01'), 'infinity')
ORDER BY posted_at DESC, id DESC
LIMIT $4`, filter.ProductID, filter.From, filter.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var qty, cost string
		var direction string
		if err := rows.Scan(&m.ID, &m.Code, &m.ProductID, &direction, &qty, &cost, &m.ReferenceDocument, &m.Reason, &m.ActorID, &m.PostedAt); err != nil {
			return nil, err
		}
		m.Direction = Direction(direction)
		if m.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if m.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
