package purchasing

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/larimar-erp/larimar-erp/internal/inventory"
	"github.com/larimar-erp/larimar-erp/internal/platform/db"
	"github.com/larimar-erp/larimar-erp/internal/shared"
	"github.com/larimar-erp/larimar-erp/internal/tax"
)

type memoryRepo struct {
	suppliers      map[int64]SupplierRecord
	suppliersByTax map[string]int64
	purchases      []Purchase
	lines          map[int64][]PurchaseLine
	nextSupplierID int64
	nextPurchaseID int64
	nextLineID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		suppliers:      make(map[int64]SupplierRecord),
		suppliersByTax: make(map[string]int64),
		lines:          make(map[int64][]PurchaseLine),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, db.Querier) error) error {
	return fn(ctx, nil)
}

func (r *memoryRepo) SupplierByID(ctx context.Context, _ db.Querier, id int64) (SupplierRecord, error) {
	rec, ok := r.suppliers[id]
	if !ok {
		return SupplierRecord{}, ErrSupplierNotFound
	}
	return rec, nil
}

func (r *memoryRepo) SupplierByTaxID(ctx context.Context, _ db.Querier, taxID string) (SupplierRecord, error) {
	id, ok := r.suppliersByTax[taxID]
	if !ok {
		return SupplierRecord{}, ErrSupplierNotFound
	}
	return r.suppliers[id], nil
}

func (r *memoryRepo) LastSupplierCode(ctx context.Context, _ db.Querier) (string, error) {
	var last string
	for _, rec := range r.suppliers {
		if rec.Code > last {
			last = rec.Code
		}
	}
	return last, nil
}

func (r *memoryRepo) InsertSupplier(ctx context.Context, _ db.Querier, rec SupplierRecord) (int64, error) {
	r.nextSupplierID++
	rec.ID = r.nextSupplierID
	r.suppliers[rec.ID] = rec
	r.suppliersByTax[rec.TaxID] = rec.ID
	return rec.ID, nil
}

func (r *memoryRepo) MaxFiscalWithPrefix(ctx context.Context, _ db.Querier, prefix string) (string, error) {
	var max string
	for _, p := range r.purchases {
		if len(p.FiscalNumber) >= len(prefix) && p.FiscalNumber[:len(prefix)] == prefix && p.FiscalNumber > max {
			max = p.FiscalNumber
		}
	}
	return max, nil
}

func (r *memoryRepo) LastPurchaseNumber(ctx context.Context, _ db.Querier) (string, error) {
	if len(r.purchases) == 0 {
		return "", nil
	}
	return r.purchases[len(r.purchases)-1].Number, nil
}

func (r *memoryRepo) InsertPurchase(ctx context.Context, _ db.Querier, p Purchase) (int64, error) {
	// Mirrors idx_purchases_informal_fiscal.
	if strings.HasPrefix(p.FiscalNumber, "B11") {
		for _, existing := range r.purchases {
			if existing.FiscalNumber == p.FiscalNumber {
				return 0, &pgconn.PgError{Code: "23505", ConstraintName: "idx_purchases_informal_fiscal"}
			}
		}
	}
	r.nextPurchaseID++
	p.ID = r.nextPurchaseID
	r.purchases = append(r.purchases, p)
	return p.ID, nil
}

func (r *memoryRepo) InsertLine(ctx context.Context, _ db.Querier, purchaseID int64, line PurchaseLine) (int64, error) {
	r.nextLineID++
	line.ID = r.nextLineID
	r.lines[purchaseID] = append(r.lines[purchaseID], line)
	return line.ID, nil
}

func (r *memoryRepo) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	for _, p := range r.purchases {
		if p.ID == id {
			p.Lines = r.lines[id]
			return p, nil
		}
	}
	return Purchase{}, ErrPurchaseNotFound
}

func (r *memoryRepo) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]Purchase, error) {
	out := make([]Purchase, len(r.purchases))
	copy(out, r.purchases)
	return out, nil
}

type fakeInventory struct {
	applied []inventory.MovementInput
}

func (f *fakeInventory) ApplyTx(ctx context.Context, _ db.Querier, input inventory.MovementInput) (inventory.MovementResult, error) {
	f.applied = append(f.applied, input)
	return inventory.MovementResult{NewQuantity: input.Quantity}, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(repo *memoryRepo, inv *fakeInventory) *Service {
	return NewService(repo, inv, nil, tax.DefaultRetention(), "B11")
}

func TestFormalPurchaseRequiresSupplierAndNCF(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeInventory{})
	ctx := context.Background()

	_, err := svc.ResolveSupplierTx(ctx, nil, SupplierPayload{Kind: SupplierFormal})
	require.ErrorIs(t, err, ErrMissingFormalFields)

	_, err = svc.ResolveSupplierTx(ctx, nil, SupplierPayload{Kind: SupplierFormal, SupplierID: 9})
	require.ErrorIs(t, err, ErrMissingFormalFields)

	_, err = svc.ResolveSupplierTx(ctx, nil, SupplierPayload{Kind: SupplierFormal, SupplierID: 9, FiscalNumber: "B0100000044"})
	require.ErrorIs(t, err, ErrSupplierNotFound)
}

func TestFormalPurchaseUsesCallerFiscalNumber(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = SupplierRecord{ID: 1, Code: "SUPPLIER-00001", Name: "Distribuidora Este", TaxID: "101000001", TaxIDType: "RNC"}
	svc := newTestService(repo, &fakeInventory{})

	resolved, err := svc.ResolveSupplierTx(context.Background(), nil, SupplierPayload{
		Kind: SupplierFormal, SupplierID: 1, FiscalNumber: "B0100000044",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), resolved.SupplierID)
	require.Equal(t, "B0100000044", resolved.FiscalNumber)
	require.False(t, resolved.Informal)
}

func TestInformalNationalIDValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeInventory{})
	ctx := context.Background()

	for _, raw := range []string{"", "123", "0011223344X", "001-122334-45678"} {
		_, err := svc.ResolveSupplierTx(ctx, nil, SupplierPayload{Kind: SupplierInformal, Name: "Juan", NationalID: raw})
		require.ErrorIs(t, err, ErrInvalidNationalID, raw)
	}

	// Separators are stripped before validation.
	resolved, err := svc.ResolveSupplierTx(ctx, nil, SupplierPayload{Kind: SupplierInformal, Name: "Juan", NationalID: "001-1223344-5"})
	require.NoError(t, err)
	require.Equal(t, "00112233445", resolved.TaxID)
}

func TestInformalResolutionIsIdempotentByTaxID(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeInventory{})
	ctx := context.Background()

	first, err := svc.ResolveSupplierTx(ctx, nil, SupplierPayload{Kind: SupplierInformal, Name: "Juan Pérez", NationalID: "00112233445"})
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, "SUPPLIER-00001", repo.suppliers[first.SupplierID].Code)
	require.True(t, repo.suppliers[first.SupplierID].Informal)

	second, err := svc.ResolveSupplierTx(ctx, nil, SupplierPayload{Kind: SupplierInformal, Name: "Juan Pérez", NationalID: "001-1223344-5"})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.SupplierID, second.SupplierID)
	require.Len(t, repo.suppliers, 1)
}

func TestInformalFiscalNumberContinuesSeries(t *testing.T) {
	repo := newMemoryRepo()
	repo.purchases = append(repo.purchases, Purchase{ID: 1, Number: "PURCHASE-00001", FiscalNumber: "B1100000007"})
	repo.nextPurchaseID = 1
	svc := newTestService(repo, &fakeInventory{})

	resolved, err := svc.ResolveSupplierTx(context.Background(), nil, SupplierPayload{Kind: SupplierInformal, Name: "Ana", NationalID: "00198765432"})
	require.NoError(t, err)
	require.Equal(t, "B1100000008", resolved.FiscalNumber)
}

// staleFiscalRepo serves a fixed max fiscal number, emulating a second
// transaction that read the series before a concurrent commit landed.
type staleFiscalRepo struct {
	*memoryRepo
	staleMax string
}

func (r *staleFiscalRepo) MaxFiscalWithPrefix(ctx context.Context, q db.Querier, prefix string) (string, error) {
	return r.staleMax, nil
}

func TestConcurrentInformalFiscalNumberRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.purchases = append(repo.purchases, Purchase{ID: 1, Number: "PURCHASE-00001", FiscalNumber: "B1100000004"})
	repo.nextPurchaseID = 1
	svc := NewService(&staleFiscalRepo{memoryRepo: repo, staleMax: "B1100000003"}, &fakeInventory{}, nil, tax.DefaultRetention(), "B11")

	_, err := svc.CreatePurchase(context.Background(), PurchaseInput{
		Supplier: SupplierPayload{Kind: SupplierInformal, Name: "Ana", NationalID: "00198765432"},
		Lines: []LineInput{
			{ProductID: 10, Quantity: dec("1"), UnitCost: dec("100.00"), TaxApplicable: true, TaxRate: dec("18")},
		},
		PurchaseType: PurchaseCash,
	})
	require.ErrorIs(t, err, ErrFiscalNumberTaken)
	require.Equal(t, shared.KindStateConflict, shared.KindOf(err))
	require.Len(t, repo.purchases, 1)
}

func TestInformalFiscalNumberStartsSeries(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeInventory{})
	resolved, err := svc.ResolveSupplierTx(context.Background(), nil, SupplierPayload{Kind: SupplierInformal, Name: "Ana", NationalID: "00198765432"})
	require.NoError(t, err)
	require.Equal(t, "B1100000001", resolved.FiscalNumber)
}

func TestCreatePurchaseAppliesStockAndTotals(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = SupplierRecord{ID: 1, Code: "SUPPLIER-00001", Name: "Distribuidora Este", TaxID: "101000001", TaxIDType: "RNC"}
	inv := &fakeInventory{}
	svc := newTestService(repo, inv)

	purchase, err := svc.CreatePurchase(context.Background(), PurchaseInput{
		Supplier: SupplierPayload{Kind: SupplierFormal, SupplierID: 1, FiscalNumber: "B0100000044"},
		Lines: []LineInput{
			{ProductID: 10, Quantity: dec("10"), UnitCost: dec("50.00"), TaxApplicable: true, TaxRate: dec("18")},
			{ProductID: 11, Quantity: dec("2"), UnitCost: dec("125.00")},
		},
		PurchaseType: PurchaseCash,
	})
	require.NoError(t, err)
	require.Equal(t, "PURCHASE-00001", purchase.Number)
	require.True(t, purchase.Subtotal.Equal(dec("750.00")), purchase.Subtotal.String())
	require.True(t, purchase.TaxTotal.Equal(dec("90.00")), purchase.TaxTotal.String())
	require.True(t, purchase.GrandTotal.Equal(dec("840.00")), purchase.GrandTotal.String())
	require.Len(t, purchase.Lines, 2)

	// One inbound movement per line, carrying the line's unit cost.
	require.Len(t, inv.applied, 2)
	require.Equal(t, inventory.DirectionIn, inv.applied[0].Direction)
	require.True(t, inv.applied[0].UnitCost.Equal(dec("50.00")))
	require.Equal(t, "PURCHASE-00001", inv.applied[0].ReferenceDocument)
}

func TestInformalPurchaseRecordsWithholdingNotes(t *testing.T) {
	repo := newMemoryRepo()
	inv := &fakeInventory{}
	svc := newTestService(repo, inv)

	// Subtotal 1000, ITBIS 180: retentions are 75% of tax and 10% of subtotal.
	purchase, err := svc.CreatePurchase(context.Background(), PurchaseInput{
		Supplier: SupplierPayload{Kind: SupplierInformal, Name: "Juan Pérez", NationalID: "00112233445"},
		Lines: []LineInput{
			{ProductID: 10, Quantity: dec("10"), UnitCost: dec("100.00"), TaxApplicable: true, TaxRate: dec("18")},
		},
		PurchaseType: PurchaseCash,
	})
	require.NoError(t, err)
	require.Contains(t, purchase.Notes, "ITBIS retained 135.00")
	require.Contains(t, purchase.Notes, "income retained 100.00")
	require.Equal(t, "B1100000001", purchase.FiscalNumber)
}

func TestCreatePurchaseRejectsEmptyLines(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeInventory{})
	_, err := svc.CreatePurchase(context.Background(), PurchaseInput{
		Supplier:     SupplierPayload{Kind: SupplierFormal, SupplierID: 1, FiscalNumber: "B0100000001"},
		PurchaseType: PurchaseCash,
	})
	require.ErrorIs(t, err, ErrEmptyPurchase)
}

func TestCreateFromMovementDerivesSingleLine(t *testing.T) {
	repo := newMemoryRepo()
	inv := &fakeInventory{}
	svc := newTestService(repo, inv)

	purchase, err := svc.CreateFromMovement(context.Background(), MovementPurchaseInput{
		ProductID:     10,
		Quantity:      dec("6"),
		UnitCost:      dec("80.00"),
		TaxApplicable: true,
		TaxRate:       dec("18"),
		Supplier:      SupplierPayload{Kind: SupplierInformal, Name: "Ana Gómez", NationalID: "00198765432"},
		PurchaseType:  PurchaseCash,
		Reason:        "intake",
	})
	require.NoError(t, err)
	require.Len(t, purchase.Lines, 1)
	require.True(t, purchase.Subtotal.Equal(dec("480.00")), purchase.Subtotal.String())
	require.True(t, purchase.GrandTotal.Equal(dec("566.40")), purchase.GrandTotal.String())

	// The movement is posted exactly once, before the purchase rows.
	require.Len(t, inv.applied, 1)
	require.True(t, inv.applied[0].Quantity.Equal(dec("6")))
}

func TestPurchaseNumbersAreSequential(t *testing.T) {
	repo := newMemoryRepo()
	repo.suppliers[1] = SupplierRecord{ID: 1, TaxID: "101000001", TaxIDType: "RNC"}
	svc := newTestService(repo, &fakeInventory{})
	ctx := context.Background()

	for i, want := range []string{"PURCHASE-00001", "PURCHASE-00002", "PURCHASE-00003"} {
		p, err := svc.CreatePurchase(ctx, PurchaseInput{
			Supplier:     SupplierPayload{Kind: SupplierFormal, SupplierID: 1, FiscalNumber: "B0100000044"},
			Lines:        []LineInput{{ProductID: 10, Quantity: dec("1"), UnitCost: dec("10.00")}},
			PurchaseType: PurchaseCash,
		})
		require.NoError(t, err, i)
		require.Equal(t, want, p.Number)
	}
}
