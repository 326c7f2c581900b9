package invoicing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/larimar-erp/larimar-erp/internal/fiscal"
	"github.com/larimar-erp/larimar-erp/internal/inventory"
	"github.com/larimar-erp/larimar-erp/internal/platform/db"
	"github.com/larimar-erp/larimar-erp/internal/shared"
)

type memoryRepo struct {
	customers   map[int64]CustomerRecord
	products    map[int64]ProductRecord
	invoices    []Invoice
	lines       map[int64][]InvoiceLine
	receivables []Receivable
	payments    []Payment
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		customers: make(map[int64]CustomerRecord),
		products:  make(map[int64]ProductRecord),
		lines:     make(map[int64][]InvoiceLine),
	}
}

// WithTx snapshots state and restores it when the callback fails, mirroring
// a database rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, db.Querier) error) error {
	snapshot := r.clone()
	if err := fn(ctx, nil); err != nil {
		*r = *snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	c := newMemoryRepo()
	for k, v := range r.customers {
		c.customers[k] = v
	}
	for k, v := range r.products {
		c.products[k] = v
	}
	c.invoices = append([]Invoice(nil), r.invoices...)
	for k, v := range r.lines {
		c.lines[k] = append([]InvoiceLine(nil), v...)
	}
	c.receivables = append([]Receivable(nil), r.receivables...)
	c.payments = append([]Payment(nil), r.payments...)
	c.nextID = r.nextID
	return c
}

func (r *memoryRepo) CustomerForUpdate(ctx context.Context, _ db.Querier, id int64) (CustomerRecord, error) {
	c, ok := r.customers[id]
	if !ok {
		return CustomerRecord{}, fmt.Errorf("%w: id %d", ErrCustomerNotFound, id)
	}
	return c, nil
}

func (r *memoryRepo) AdjustCustomerBalance(ctx context.Context, _ db.Querier, id int64, delta decimal.Decimal) error {
	c, ok := r.customers[id]
	if !ok {
		return ErrCustomerNotFound
	}
	c.Balance = c.Balance.Add(delta)
	r.customers[id] = c
	return nil
}

func (r *memoryRepo) ProductForSale(ctx context.Context, _ db.Querier, id int64) (ProductRecord, error) {
	p, ok := r.products[id]
	if !ok {
		return ProductRecord{}, fmt.Errorf("%w: id %d", inventory.ErrProductNotFound, id)
	}
	return p, nil
}

func (r *memoryRepo) LastInvoiceNumber(ctx context.Context, _ db.Querier) (string, error) {
	if len(r.invoices) == 0 {
		return "", nil
	}
	return r.invoices[len(r.invoices)-1].Number, nil
}

func (r *memoryRepo) InsertInvoice(ctx context.Context, _ db.Querier, inv Invoice) (int64, error) {
	r.nextID++
	inv.ID = r.nextID
	r.invoices = append(r.invoices, inv)
	return inv.ID, nil
}

func (r *memoryRepo) InsertLine(ctx context.Context, _ db.Querier, invoiceID int64, line InvoiceLine) (int64, error) {
	r.nextID++
	line.ID = r.nextID
	r.lines[invoiceID] = append(r.lines[invoiceID], line)
	return line.ID, nil
}

func (r *memoryRepo) findInvoice(id int64) (int, bool) {
	for i := range r.invoices {
		if r.invoices[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (r *memoryRepo) InvoiceForUpdate(ctx context.Context, _ db.Querier, id int64) (Invoice, error) {
	i, ok := r.findInvoice(id)
	if !ok {
		return Invoice{}, fmt.Errorf("%w: id %d", ErrInvoiceNotFound, id)
	}
	inv := r.invoices[i]
	inv.Lines = r.lines[id]
	return inv, nil
}

func (r *memoryRepo) UpdateInvoicePayment(ctx context.Context, _ db.Querier, id int64, amountPaid, balanceDue decimal.Decimal, status string) error {
	i, ok := r.findInvoice(id)
	if !ok {
		return ErrInvoiceNotFound
	}
	r.invoices[i].AmountPaid = amountPaid
	r.invoices[i].BalanceDue = balanceDue
	r.invoices[i].Status = status
	return nil
}

func (r *memoryRepo) MarkVoided(ctx context.Context, _ db.Querier, id int64, reason string, at time.Time) error {
	i, ok := r.findInvoice(id)
	if !ok {
		return ErrInvoiceNotFound
	}
	r.invoices[i].Voided = true
	r.invoices[i].Status = StatusVoided
	r.invoices[i].VoidReason = reason
	r.invoices[i].VoidedAt = &at
	return nil
}

func (r *memoryRepo) InsertReceivable(ctx context.Context, _ db.Querier, rec Receivable) (int64, error) {
	r.nextID++
	rec.ID = r.nextID
	r.receivables = append(r.receivables, rec)
	return rec.ID, nil
}

func (r *memoryRepo) ReceivableForUpdate(ctx context.Context, _ db.Querier, invoiceID int64) (Receivable, error) {
	for _, rec := range r.receivables {
		if rec.InvoiceID == invoiceID {
			return rec, nil
		}
	}
	return Receivable{}, ErrInvoiceNotFound
}

func (r *memoryRepo) UpdateReceivable(ctx context.Context, _ db.Querier, id int64, paid, balance decimal.Decimal, status string) error {
	for i := range r.receivables {
		if r.receivables[i].ID == id {
			r.receivables[i].PaidAmount = paid
			r.receivables[i].Balance = balance
			r.receivables[i].Status = status
			return nil
		}
	}
	return ErrInvoiceNotFound
}

func (r *memoryRepo) LastReceiptNumber(ctx context.Context, _ db.Querier) (string, error) {
	if len(r.payments) == 0 {
		return "", nil
	}
	return r.payments[len(r.payments)-1].ReceiptNumber, nil
}

func (r *memoryRepo) InsertPayment(ctx context.Context, _ db.Querier, p Payment) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	r.payments = append(r.payments, p)
	return p.ID, nil
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return r.InvoiceForUpdate(ctx, nil, id)
}

func (r *memoryRepo) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	out := make([]Invoice, len(r.invoices))
	copy(out, r.invoices)
	return out, nil
}

type fakeFiscal struct {
	issued int
	err    error
}

func (f *fakeFiscal) IssueTx(ctx context.Context, _ db.Querier, docType string) (fiscal.IssuedNumber, error) {
	if f.err != nil {
		return fiscal.IssuedNumber{}, f.err
	}
	f.issued++
	return fiscal.IssuedNumber{
		NCF:              fmt.Sprintf("%s%08d", docType, f.issued),
		DocumentType:     docType,
		PercentRemaining: 50,
	}, nil
}

type fakeInventory struct {
	stock     map[int64]decimal.Decimal
	movements []inventory.MovementInput
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{stock: make(map[int64]decimal.Decimal)}
}

func (f *fakeInventory) ApplyTx(ctx context.Context, _ db.Querier, input inventory.MovementInput) (inventory.MovementResult, error) {
	current := f.stock[input.ProductID]
	switch input.Direction {
	case inventory.DirectionOut:
		if current.LessThan(input.Quantity) {
			return inventory.MovementResult{}, fmt.Errorf("%w: product %d", inventory.ErrInsufficientStock, input.ProductID)
		}
		current = current.Sub(input.Quantity)
	case inventory.DirectionIn:
		current = current.Add(input.Quantity)
	}
	f.stock[input.ProductID] = current
	f.movements = append(f.movements, input)
	return inventory.MovementResult{NewQuantity: current}, nil
}

func (f *fakeInventory) ReverseTx(ctx context.Context, q db.Querier, lines []inventory.ReversalLine, refDoc, reason string, actorID int64) error {
	for _, line := range lines {
		_, err := f.ApplyTx(ctx, q, inventory.MovementInput{
			ProductID:         line.ProductID,
			Direction:         inventory.DirectionIn,
			Quantity:          line.Quantity,
			ReferenceDocument: refDoc,
			Reason:            reason,
			ActorID:           actorID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	repo *memoryRepo
	fis  *fakeFiscal
	inv  *fakeInventory
	svc  *Service
}

func newFixture() *fixture {
	repo := newMemoryRepo()
	fis := &fakeFiscal{}
	inv := newFakeInventory()

	repo.customers[1] = CustomerRecord{ID: 1, Name: "Colmado La Fe", TaxID: "00112233445", TaxIDType: "CEDULA", Balance: decimal.Zero}
	repo.products[10] = ProductRecord{ID: 10, Code: "P010", Name: "Arroz", UnitPrice: dec("100.00"), TaxApplicable: true, TaxRate: dec("18")}
	repo.products[11] = ProductRecord{ID: 11, Code: "P011", Name: "Plátano", UnitPrice: dec("50.00")}
	inv.stock[10] = dec("10")
	inv.stock[11] = dec("10")

	return &fixture{repo: repo, fis: fis, inv: inv, svc: NewService(repo, fis, inv, nil)}
}

func specLines() []LineInput {
	// Two taxed units at 100 plus one exempt unit at 50.
	return []LineInput{
		{ProductID: 10, Quantity: dec("2")},
		{ProductID: 11, Quantity: dec("1")},
	}
}

func TestCreateCashInvoiceTotals(t *testing.T) {
	f := newFixture()
	result, err := f.svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: 1, Lines: specLines(), SaleType: SaleCash,
	})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, "INVOICE-00001", inv.Number)
	require.True(t, inv.Subtotal.Equal(dec("250.00")), inv.Subtotal.String())
	require.True(t, inv.TaxTotal.Equal(dec("36.00")), inv.TaxTotal.String())
	require.True(t, inv.GrandTotal.Equal(dec("286.00")), inv.GrandTotal.String())
	require.Equal(t, StatusPaid, inv.Status)
	require.True(t, inv.BalanceDue.IsZero())
	require.Nil(t, inv.FiscalNumber)

	// One outbound movement per line referencing the invoice number.
	require.Len(t, f.inv.movements, 2)
	require.Equal(t, inventory.DirectionOut, f.inv.movements[0].Direction)
	require.Equal(t, "INVOICE-00001", f.inv.movements[0].ReferenceDocument)
	require.True(t, f.inv.stock[10].Equal(dec("8")))
	require.True(t, f.inv.stock[11].Equal(dec("9")))
}

func TestCreateInvoiceWithNCF(t *testing.T) {
	f := newFixture()
	result, err := f.svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: 1, Lines: specLines(), SaleType: SaleCash, FiscalDocType: "B01",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Invoice.FiscalNumber)
	require.Equal(t, "B0100000001", *result.Invoice.FiscalNumber)
	require.NotNil(t, result.Fiscal)
}

func TestCreateInvoiceFiscalFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.fis.err = fiscal.ErrNoActiveRange

	_, err := f.svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: 1, Lines: specLines(), SaleType: SaleCash, FiscalDocType: "B01",
	})
	require.ErrorIs(t, err, fiscal.ErrNoActiveRange)
	require.Empty(t, f.repo.invoices)
}

func TestCreateCreditInvoiceOpensReceivable(t *testing.T) {
	f := newFixture()
	result, err := f.svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: 1, Lines: specLines(), SaleType: SaleCredit,
	})
	require.NoError(t, err)

	inv := result.Invoice
	require.Equal(t, StatusPending, inv.Status)
	require.True(t, inv.BalanceDue.Equal(dec("286.00")))
	require.True(t, inv.AmountPaid.IsZero())

	require.Len(t, f.repo.receivables, 1)
	rec := f.repo.receivables[0]
	require.Equal(t, inv.ID, rec.InvoiceID)
	require.True(t, rec.Balance.Equal(dec("286.00")))
	require.Equal(t, ReceivableCurrent, rec.Status)
	require.True(t, f.repo.customers[1].Balance.Equal(dec("286.00")))
}

func TestCreateInvoiceValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, InvoiceInput{CustomerID: 1, SaleType: SaleCash})
	require.ErrorIs(t, err, ErrEmptyInvoice)

	_, err = f.svc.CreateInvoice(ctx, InvoiceInput{CustomerID: 99, Lines: specLines(), SaleType: SaleCash})
	require.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestInsufficientStockRollsBackInvoice(t *testing.T) {
	f := newFixture()
	f.inv.stock[10] = dec("1")

	_, err := f.svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: 1, Lines: specLines(), SaleType: SaleCash,
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Empty(t, f.repo.invoices)
}

func TestPOSSaleReturnsChange(t *testing.T) {
	f := newFixture()
	result, err := f.svc.CreatePOSSale(context.Background(), POSInput{
		InvoiceInput:   InvoiceInput{CustomerID: 1, Lines: specLines(), SaleType: SaleCash},
		AmountReceived: dec("500.00"),
		Method:         "cash",
	})
	require.NoError(t, err)
	require.True(t, result.Change.Equal(dec("214.00")), result.Change.String())
	require.Equal(t, "RECEIPT-00001", result.Payment.ReceiptNumber)
	require.True(t, result.Payment.Amount.Equal(dec("286.00")))
	require.Equal(t, StatusPaid, result.Invoice.Status)
}

func TestPOSSaleRejectsShortPaymentBeforePersisting(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreatePOSSale(context.Background(), POSInput{
		InvoiceInput:   InvoiceInput{CustomerID: 1, Lines: specLines(), SaleType: SaleCash},
		AmountReceived: dec("200.00"),
	})
	require.ErrorIs(t, err, ErrInsufficientPayment)
	require.Equal(t, shared.KindStateConflict, shared.KindOf(err))
	require.Empty(t, f.repo.invoices)
	require.Empty(t, f.repo.payments)
	require.Empty(t, f.inv.movements)
}

func TestPOSSaleIsCashOnly(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreatePOSSale(context.Background(), POSInput{
		InvoiceInput:   InvoiceInput{CustomerID: 1, Lines: specLines(), SaleType: SaleCredit},
		AmountReceived: dec("286.00"),
	})
	require.ErrorIs(t, err, ErrPOSCashOnly)
	require.Empty(t, f.repo.invoices)
	require.Empty(t, f.repo.payments)
	require.Empty(t, f.repo.receivables)
	require.Empty(t, f.inv.movements)
}

func TestPOSSaleDefaultsToCash(t *testing.T) {
	f := newFixture()
	result, err := f.svc.CreatePOSSale(context.Background(), POSInput{
		InvoiceInput:   InvoiceInput{CustomerID: 1, Lines: specLines()},
		AmountReceived: dec("300.00"),
	})
	require.NoError(t, err)
	require.Equal(t, SaleCash, result.Invoice.SaleType)
	require.Equal(t, StatusPaid, result.Invoice.Status)
	require.True(t, result.Invoice.BalanceDue.IsZero())
	require.Empty(t, f.repo.receivables)
}

func TestVoidRestoresStockAndSettlesReceivable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.CreateInvoice(ctx, InvoiceInput{
		CustomerID: 1, Lines: specLines(), SaleType: SaleCredit,
	})
	require.NoError(t, err)
	require.True(t, f.inv.stock[10].Equal(dec("8")))

	voided, err := f.svc.VoidInvoice(ctx, result.Invoice.ID, "customer returned goods", 7)
	require.NoError(t, err)
	require.True(t, voided.Voided)
	require.Equal(t, StatusVoided, voided.Status)
	require.Equal(t, "customer returned goods", voided.VoidReason)
	require.NotNil(t, voided.VoidedAt)

	// Stock round-trips back to the pre-sale quantities.
	require.True(t, f.inv.stock[10].Equal(dec("10")))
	require.True(t, f.inv.stock[11].Equal(dec("10")))

	// The credit exposure is released.
	require.True(t, f.repo.customers[1].Balance.IsZero(), f.repo.customers[1].Balance.String())
	require.Equal(t, ReceivableSettled, f.repo.receivables[0].Status)
	require.True(t, f.repo.receivables[0].Balance.IsZero())
}

func TestVoidPreconditions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.VoidInvoice(ctx, 1, "", 0)
	require.ErrorIs(t, err, ErrMissingReason)

	_, err = f.svc.VoidInvoice(ctx, 404, "reason", 0)
	require.ErrorIs(t, err, ErrInvoiceNotFound)

	result, err := f.svc.CreateInvoice(ctx, InvoiceInput{CustomerID: 1, Lines: specLines(), SaleType: SaleCash})
	require.NoError(t, err)
	_, err = f.svc.VoidInvoice(ctx, result.Invoice.ID, "first", 0)
	require.NoError(t, err)
	_, err = f.svc.VoidInvoice(ctx, result.Invoice.ID, "second", 0)
	require.ErrorIs(t, err, ErrAlreadyVoided)
}

func TestApplyPaymentLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.CreateInvoice(ctx, InvoiceInput{
		CustomerID: 1, Lines: specLines(), SaleType: SaleCredit,
	})
	require.NoError(t, err)
	invoiceID := result.Invoice.ID

	payment, err := f.svc.ApplyPayment(ctx, PaymentInput{InvoiceID: invoiceID, Amount: dec("100.00")})
	require.NoError(t, err)
	require.Equal(t, "RECEIPT-00001", payment.ReceiptNumber)

	inv, err := f.svc.GetInvoice(ctx, invoiceID)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, inv.Status)
	require.True(t, inv.BalanceDue.Equal(dec("186.00")))
	require.True(t, f.repo.customers[1].Balance.Equal(dec("186.00")))
	require.True(t, f.repo.receivables[0].Balance.Equal(dec("186.00")))

	payment, err = f.svc.ApplyPayment(ctx, PaymentInput{InvoiceID: invoiceID, Amount: dec("186.00")})
	require.NoError(t, err)
	require.Equal(t, "RECEIPT-00002", payment.ReceiptNumber)

	inv, err = f.svc.GetInvoice(ctx, invoiceID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)
	require.True(t, inv.BalanceDue.IsZero())
	require.Equal(t, ReceivableSettled, f.repo.receivables[0].Status)
	require.True(t, f.repo.customers[1].Balance.IsZero())
}

func TestApplyPaymentRejectsOutOfRangeAmounts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.CreateInvoice(ctx, InvoiceInput{
		CustomerID: 1, Lines: specLines(), SaleType: SaleCredit,
	})
	require.NoError(t, err)

	for _, amount := range []string{"0", "-5", "286.01"} {
		_, err := f.svc.ApplyPayment(ctx, PaymentInput{InvoiceID: result.Invoice.ID, Amount: dec(amount)})
		require.ErrorIs(t, err, ErrInvalidPaymentAmount, amount)
	}

	_, err = f.svc.ApplyPayment(ctx, PaymentInput{InvoiceID: 404, Amount: dec("10")})
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestPaymentOnVoidedInvoiceRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.CreateInvoice(ctx, InvoiceInput{CustomerID: 1, Lines: specLines(), SaleType: SaleCredit})
	require.NoError(t, err)
	_, err = f.svc.VoidInvoice(ctx, result.Invoice.ID, "mistake", 0)
	require.NoError(t, err)

	_, err = f.svc.ApplyPayment(ctx, PaymentInput{InvoiceID: result.Invoice.ID, Amount: dec("10")})
	require.ErrorIs(t, err, ErrInvoiceVoided)
}
