package fiscal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/larimar-erp/larimar-erp/internal/platform/db"
)

type memoryRepo struct {
	ranges []SequenceRange
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, db.Querier) error) error {
	return fn(ctx, nil)
}

func (r *memoryRepo) active(docType string) (int, error) {
	for i, rng := range r.ranges {
		if rng.DocumentType == docType && rng.Active && !rng.Exhausted {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w for %s; request a new range from DGII", ErrNoActiveRange, docType)
}

func (r *memoryRepo) ActiveForUpdate(ctx context.Context, _ db.Querier, docType string) (SequenceRange, error) {
	i, err := r.active(docType)
	if err != nil {
		return SequenceRange{}, err
	}
	return r.ranges[i], nil
}

func (r *memoryRepo) StoreCursor(ctx context.Context, _ db.Querier, rng SequenceRange) error {
	for i := range r.ranges {
		if r.ranges[i].ID == rng.ID {
			r.ranges[i] = rng
			return nil
		}
	}
	return ErrRangeNotFound
}

func (r *memoryRepo) Active(ctx context.Context, docType string) (SequenceRange, error) {
	i, err := r.active(docType)
	if err != nil {
		return SequenceRange{}, err
	}
	return r.ranges[i], nil
}

func (r *memoryRepo) Insert(ctx context.Context, _ db.Querier, rng SequenceRange) (int64, error) {
	r.nextID++
	rng.ID = r.nextID
	r.ranges = append(r.ranges, rng)
	return rng.ID, nil
}

func (r *memoryRepo) DeactivateByType(ctx context.Context, _ db.Querier, docType string) error {
	for i := range r.ranges {
		if r.ranges[i].DocumentType == docType {
			r.ranges[i].Active = false
		}
	}
	return nil
}

func (r *memoryRepo) List(ctx context.Context) ([]SequenceRange, error) {
	out := make([]SequenceRange, len(r.ranges))
	copy(out, r.ranges)
	return out, nil
}

func (r *memoryRepo) Deactivate(ctx context.Context, id int64) error {
	for i := range r.ranges {
		if r.ranges[i].ID == id {
			r.ranges[i].Active = false
			return nil
		}
	}
	return ErrRangeNotFound
}

func seedRange(t *testing.T, repo *memoryRepo, docType, start, end string) SequenceRange {
	t.Helper()
	rng := SequenceRange{DocumentType: docType, RangeStart: start, RangeEnd: end, Cursor: start, Active: true}
	id, err := repo.Insert(context.Background(), nil, rng)
	require.NoError(t, err)
	rng.ID = id
	return rng
}

func TestIssueAdvancesCursor(t *testing.T) {
	repo := newMemoryRepo()
	seedRange(t, repo, "B01", "B0100000001", "B0100001000")
	svc := NewService(repo, nil, 10)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "B01")
	require.NoError(t, err)
	require.Equal(t, "B0100000001", issued.NCF)
	require.False(t, issued.LowRemaining)

	rng, err := repo.Active(ctx, "B01")
	require.NoError(t, err)
	require.Equal(t, "B0100000002", rng.Cursor)
	require.False(t, rng.Exhausted)
}

func TestIssueNeverRepeats(t *testing.T) {
	repo := newMemoryRepo()
	seedRange(t, repo, "B02", "B0200000001", "B0200000050")
	svc := NewService(repo, nil, 10)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		issued, err := svc.Issue(ctx, "B02")
		require.NoError(t, err)
		require.False(t, seen[issued.NCF], "duplicate ncf %s", issued.NCF)
		seen[issued.NCF] = true
	}
	_, err := svc.Issue(ctx, "B02")
	require.ErrorIs(t, err, ErrNoActiveRange)
}

func TestIssueExhaustsRangeAtomically(t *testing.T) {
	repo := newMemoryRepo()
	rng := seedRange(t, repo, "B01", "B0100000001", "B0100000001")
	svc := NewService(repo, nil, 10)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "B01")
	require.NoError(t, err)
	require.Equal(t, "B0100000001", issued.NCF)

	stored := repo.ranges[0]
	require.Equal(t, rng.ID, stored.ID)
	require.True(t, stored.Exhausted)
	require.False(t, stored.Active)

	_, err = svc.Issue(ctx, "B01")
	require.ErrorIs(t, err, ErrNoActiveRange)
}

func TestIssueRefusesExpiredRange(t *testing.T) {
	repo := newMemoryRepo()
	expired := time.Now().Add(-24 * time.Hour)
	rng := SequenceRange{DocumentType: "B01", RangeStart: "B0100000001", RangeEnd: "B0100001000", Cursor: "B0100000001", Active: true, ExpiresAt: &expired}
	_, err := repo.Insert(context.Background(), nil, rng)
	require.NoError(t, err)

	svc := NewService(repo, nil, 10)
	_, err = svc.Issue(context.Background(), "B01")
	require.ErrorIs(t, err, ErrRangeExpired)
}

func TestLowRemainingWarning(t *testing.T) {
	repo := newMemoryRepo()
	seedRange(t, repo, "B01", "B0100000001", "B0100000010")
	svc := NewService(repo, nil, 25)
	ctx := context.Background()

	var last IssuedNumber
	for i := 0; i < 9; i++ {
		var err error
		last, err = svc.Issue(ctx, "B01")
		require.NoError(t, err)
	}
	// One number left of ten: 10% remaining, under the 25% threshold.
	require.True(t, last.LowRemaining)
	require.InDelta(t, 10.0, last.PercentRemaining, 0.001)
}

func TestPeekDoesNotConsume(t *testing.T) {
	repo := newMemoryRepo()
	seedRange(t, repo, "B14", "B1400000001", "B1400000100")
	svc := NewService(repo, nil, 10)
	ctx := context.Background()

	ncf, err := svc.Peek(ctx, "B14")
	require.NoError(t, err)
	require.Equal(t, "B1400000001", ncf)

	again, err := svc.Peek(ctx, "B14")
	require.NoError(t, err)
	require.Equal(t, ncf, again)
}

func TestCreateRangeDeactivatesPrevious(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 10)
	ctx := context.Background()

	first, err := svc.CreateRange(ctx, CreateRangeInput{DocumentType: "B01", RangeStart: "B0100000001", RangeEnd: "B0100000100"})
	require.NoError(t, err)

	_, err = svc.CreateRange(ctx, CreateRangeInput{DocumentType: "B01", RangeStart: "B0100000101", RangeEnd: "B0100000200"})
	require.NoError(t, err)

	ranges, err := svc.ListRanges(ctx)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	for _, rng := range ranges {
		if rng.ID == first.ID {
			require.False(t, rng.Active)
		}
	}

	ncf, err := svc.Peek(ctx, "B01")
	require.NoError(t, err)
	require.Equal(t, "B0100000101", ncf)
}

func TestCreateRangeValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 10)
	ctx := context.Background()

	_, err := svc.CreateRange(ctx, CreateRangeInput{DocumentType: "B01", RangeStart: "B0100000100", RangeEnd: "B0100000001"})
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.CreateRange(ctx, CreateRangeInput{DocumentType: "B01", RangeStart: "B0200000001", RangeEnd: "B0200000100"})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestCursorMonotonic(t *testing.T) {
	repo := newMemoryRepo()
	seedRange(t, repo, "B01", "B0100000001", "B0100000020")
	svc := NewService(repo, nil, 10)
	ctx := context.Background()

	prev := ""
	for i := 0; i < 20; i++ {
		issued, err := svc.Issue(ctx, "B01")
		require.NoError(t, err)
		if prev != "" {
			require.Greater(t, issued.NCF, prev)
		}
		prev = issued.NCF
	}
	var errNoRange error
	_, errNoRange = svc.Issue(ctx, "B01")
	require.True(t, errors.Is(errNoRange, ErrNoActiveRange))
}
