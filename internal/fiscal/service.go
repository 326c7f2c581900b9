package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/larimar-erp/larimar-erp/internal/platform/db"
	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// RepositoryPort abstracts persistence for the allocator. Methods taking a
// db.Querier run against the caller's transaction so issuance commits or
// rolls back together with the document that consumed the number.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, db.Querier) error) error
	ActiveForUpdate(ctx context.Context, q db.Querier, docType string) (SequenceRange, error)
	StoreCursor(ctx context.Context, q db.Querier, rng SequenceRange) error
	Active(ctx context.Context, docType string) (SequenceRange, error)
	Insert(ctx context.Context, q db.Querier, rng SequenceRange) (int64, error)
	DeactivateByType(ctx context.Context, q db.Querier, docType string) error
	List(ctx context.Context) ([]SequenceRange, error)
	Deactivate(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service allocates fiscal numbers from sequence ranges.
type Service struct {
	repo          RepositoryPort
	audit         AuditPort
	warnThreshold float64
	now           func() time.Time
}

// NewService builds the allocator. warnThresholdPct is the remaining
// percentage under which issuance flags LowRemaining.
func NewService(repo RepositoryPort, audit AuditPort, warnThresholdPct float64) *Service {
	if warnThresholdPct <= 0 {
		warnThresholdPct = 10
	}
	return &Service{repo: repo, audit: audit, warnThreshold: warnThresholdPct, now: time.Now}
}

// Issue consumes the next fiscal number for docType in its own transaction.
func (s *Service) Issue(ctx context.Context, docType string) (IssuedNumber, error) {
	var issued IssuedNumber
	err := s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		issued, err = s.IssueTx(ctx, q, docType)
		return err
	})
	if err != nil {
		return IssuedNumber{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "ncf:issue",
			Entity:   "fiscal_sequence_range",
			EntityID: issued.NCF,
			Meta:     map[string]any{"document_type": docType},
		})
	}
	return issued, nil
}

// IssueTx consumes the next fiscal number inside the caller's transaction.
// The range row is locked, the cursor advanced, and exhaustion flipped in
// the same UPDATE, so an exhausted range never appears active to a
// concurrent workflow and the issued number commits atomically with the
// document that uses it.
func (s *Service) IssueTx(ctx context.Context, q db.Querier, docType string) (IssuedNumber, error) {
	rng, err := s.repo.ActiveForUpdate(ctx, q, docType)
	if err != nil {
		return IssuedNumber{}, err
	}
	if rng.ExpiresAt != nil && s.now().After(*rng.ExpiresAt) {
		return IssuedNumber{}, fmt.Errorf("%w: %s range expired %s", ErrRangeExpired, docType, rng.ExpiresAt.Format("2006-01-02"))
	}

	cur, width, err := splitNCF(docType, rng.Cursor)
	if err != nil {
		return IssuedNumber{}, shared.WithKind(shared.KindIntegrity, err)
	}
	end, _, err := splitNCF(docType, rng.RangeEnd)
	if err != nil {
		return IssuedNumber{}, shared.WithKind(shared.KindIntegrity, err)
	}
	start, _, err := splitNCF(docType, rng.RangeStart)
	if err != nil {
		return IssuedNumber{}, shared.WithKind(shared.KindIntegrity, err)
	}

	issuedNCF := rng.Cursor
	next := cur + 1
	rng.Cursor = formatNCF(docType, next, width)
	if next > end {
		rng.Exhausted = true
		rng.Active = false
	}
	if err := s.repo.StoreCursor(ctx, q, rng); err != nil {
		return IssuedNumber{}, shared.WithKind(shared.KindIntegrity, err)
	}

	total := end - start + 1
	remaining := end - next + 1
	if remaining < 0 {
		remaining = 0
	}
	pct := float64(remaining) / float64(total) * 100
	return IssuedNumber{
		NCF:              issuedNCF,
		DocumentType:     docType,
		PercentRemaining: pct,
		LowRemaining:     pct < s.warnThreshold,
		ExpiresAt:        rng.ExpiresAt,
	}, nil
}

// Peek returns the next number for docType without consuming it.
func (s *Service) Peek(ctx context.Context, docType string) (string, error) {
	rng, err := s.repo.Active(ctx, docType)
	if err != nil {
		return "", err
	}
	return rng.Cursor, nil
}

// CreateRange registers a new authorised range. Any previously active range
// for the same document type is deactivated in the same transaction, so at
// most one active range per type exists.
func (s *Service) CreateRange(ctx context.Context, input CreateRangeInput) (SequenceRange, error) {
	if input.DocumentType == "" {
		return SequenceRange{}, fmt.Errorf("%w: document type required", ErrInvalidRange)
	}
	startN, startW, err := splitNCF(input.DocumentType, input.RangeStart)
	if err != nil {
		return SequenceRange{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	endN, endW, err := splitNCF(input.DocumentType, input.RangeEnd)
	if err != nil {
		return SequenceRange{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	if startW != endW || startN > endN {
		return SequenceRange{}, fmt.Errorf("%w: start must not exceed end", ErrInvalidRange)
	}
	rng := SequenceRange{
		DocumentType: input.DocumentType,
		RangeStart:   input.RangeStart,
		RangeEnd:     input.RangeEnd,
		Cursor:       input.RangeStart,
		Active:       true,
		ExpiresAt:    input.ExpiresAt,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		if err := s.repo.DeactivateByType(ctx, q, input.DocumentType); err != nil {
			return err
		}
		id, err := s.repo.Insert(ctx, q, rng)
		if err != nil {
			return err
		}
		rng.ID = id
		return nil
	})
	if err != nil {
		return SequenceRange{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "ncf:range_create",
			Entity:   "fiscal_sequence_range",
			EntityID: fmt.Sprintf("%d", rng.ID),
			Meta:     map[string]any{"document_type": rng.DocumentType, "start": rng.RangeStart, "end": rng.RangeEnd},
		})
	}
	return rng, nil
}

// ListRanges returns all known ranges, newest first.
func (s *Service) ListRanges(ctx context.Context) ([]SequenceRange, error) {
	return s.repo.List(ctx)
}

// DeactivateRange turns a range off without deleting it.
func (s *Service) DeactivateRange(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

// PercentRemaining reports how much of the active range for docType is
// still unissued.
func (s *Service) PercentRemaining(ctx context.Context, docType string) (float64, error) {
	rng, err := s.repo.Active(ctx, docType)
	if err != nil {
		return 0, err
	}
	cur, _, err := splitNCF(docType, rng.Cursor)
	if err != nil {
		return 0, shared.WithKind(shared.KindIntegrity, err)
	}
	start, _, err := splitNCF(docType, rng.RangeStart)
	if err != nil {
		return 0, shared.WithKind(shared.KindIntegrity, err)
	}
	end, _, err := splitNCF(docType, rng.RangeEnd)
	if err != nil {
		return 0, shared.WithKind(shared.KindIntegrity, err)
	}
	total := end - start + 1
	remaining := end - cur + 1
	if remaining < 0 {
		remaining = 0
	}
	return float64(remaining) / float64(total) * 100, nil
}
