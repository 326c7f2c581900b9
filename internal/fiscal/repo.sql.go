package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/larimar-erp/larimar-erp/internal/platform/db"
)

// Repository persists sequence ranges in PostgreSQL.
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

const rangeColumns = `id, document_type, range_start, range_end, cursor, exhausted, active, expires_at, created_at, updated_at`

func scanRange(row pgx.Row) (SequenceRange, error) {
	var rng SequenceRange
	var expires *time.Time
	err := row.Scan(&rng.ID, &rng.DocumentType, &rng.RangeStart, &rng.RangeEnd, &rng.Cursor, &rng.Exhausted, &rng.Active, &expires, &rng.CreatedAt, &rng.UpdatedAt)
	if err != nil {
		return SequenceRange{}, err
	}
	rng.ExpiresAt = expires
	return rng, nil
}

// ActiveForUpdate locks the active, non-exhausted range for docType. The
// row lock serialises concurrent issuance against the same type.
func (r *Repository) ActiveForUpdate(ctx context.Context, q db.Querier, docType string) (SequenceRange, error) {
	rng, err := scanRange(q.QueryRow(ctx, `SELECT `+rangeColumns+`
FROM fiscal_sequence_ranges
WHERE document_type=$1 AND active AND NOT exhausted
FOR UPDATE`, docType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SequenceRange{}, fmt.Errorf("%w for %s; request a new range from DGII", ErrNoActiveRange, docType)
		}
		return SequenceRange{}, err
	}
	return rng, nil
}

// StoreCursor persists the advanced cursor and, when the range ran out, the
// exhausted/inactive transition in the same statement.
func (r *Repository) StoreCursor(ctx context.Context, q db.Querier, rng SequenceRange) error {
	tag, err := q.Exec(ctx, `UPDATE fiscal_sequence_ranges
SET cursor=$2, exhausted=$3, active=$4, updated_at=NOW()
WHERE id=$1`, rng.ID, rng.Cursor, rng.Exhausted, rng.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRangeNotFound
	}
	return nil
}

// Active returns the active, non-exhausted range for docType.
func (r *Repository) Active(ctx context.Context, docType string) (SequenceRange, error) {
	rng, err := scanRange(r.pool.QueryRow(ctx, `SELECT `+rangeColumns+`
FROM fiscal_sequence_ranges
WHERE document_type=$1 AND active AND NOT exhausted`, docType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SequenceRange{}, fmt.Errorf("%w for %s; request a new range from DGII", ErrNoActiveRange, docType)
		}
		return SequenceRange{}, err
	}
	return rng, nil
}

// Insert stores a new range.
func (r *Repository) Insert(ctx context.Context, q db.Querier, rng SequenceRange) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO fiscal_sequence_ranges
(document_type, range_start, range_end, cursor, exhausted, active, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING id`, rng.DocumentType, rng.RangeStart, rng.RangeEnd, rng.Cursor, rng.Exhausted, rng.Active, rng.ExpiresAt).Scan(&id)
	return id, err
}

// DeactivateByType turns off any active range for docType.
func (r *Repository) DeactivateByType(ctx context.Context, q db.Querier, docType string) error {
	_, err := q.Exec(ctx, `UPDATE fiscal_sequence_ranges SET active=false, updated_at=NOW() WHERE document_type=$1 AND active`, docType)
	return err
}

// List returns all ranges, newest first.
func (r *Repository) List(ctx context.Context) ([]SequenceRange, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rangeColumns+` FROM fiscal_sequence_ranges ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ranges []SequenceRange
	for rows.Next() {
		rng, err := scanRange(rows)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, rng)
	}
	return ranges, rows.Err()
}

// Deactivate turns off one range by id.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE fiscal_sequence_ranges SET active=false, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRangeNotFound
	}
	return nil
}
