package invoicing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/fiscal"
	"github.com/larimar-erp/larimar-erp/internal/inventory"
	"github.com/larimar-erp/larimar-erp/internal/platform/db"
	"github.com/larimar-erp/larimar-erp/internal/shared"
	"github.com/larimar-erp/larimar-erp/internal/tax"
)

// CustomerRecord is the invoicing view of a customer row.
type CustomerRecord struct {
	ID        int64
	Name      string
	TaxID     string
	TaxIDType string
	Balance   decimal.Decimal
}

// ProductRecord is the invoicing view of a product row.
type ProductRecord struct {
	ID            int64
	Code          string
	Name          string
	UnitPrice     decimal.Decimal
	TaxApplicable bool
	TaxRate       decimal.Decimal
}

// RepositoryPort abstracts persistence. Querier-taking methods join the
// workflow transaction.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, db.Querier) error) error
	CustomerForUpdate(ctx context.Context, q db.Querier, id int64) (CustomerRecord, error)
	AdjustCustomerBalance(ctx context.Context, q db.Querier, id int64, delta decimal.Decimal) error
	ProductForSale(ctx context.Context, q db.Querier, id int64) (ProductRecord, error)
	LastInvoiceNumber(ctx context.Context, q db.Querier) (string, error)
	InsertInvoice(ctx context.Context, q db.Querier, inv Invoice) (int64, error)
	InsertLine(ctx context.Context, q db.Querier, invoiceID int64, line InvoiceLine) (int64, error)
	InvoiceForUpdate(ctx context.Context, q db.Querier, id int64) (Invoice, error)
	UpdateInvoicePayment(ctx context.Context, q db.Querier, id int64, amountPaid, balanceDue decimal.Decimal, status string) error
	MarkVoided(ctx context.Context, q db.Querier, id int64, reason string, at time.Time) error
	InsertReceivable(ctx context.Context, q db.Querier, rec Receivable) (int64, error)
	ReceivableForUpdate(ctx context.Context, q db.Querier, invoiceID int64) (Receivable, error)
	UpdateReceivable(ctx context.Context, q db.Querier, id int64, paid, balance decimal.Decimal, status string) error
	LastReceiptNumber(ctx context.Context, q db.Querier) (string, error)
	InsertPayment(ctx context.Context, q db.Querier, p Payment) (int64, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
}

// FiscalPort issues NCFs inside the sale transaction.
type FiscalPort interface {
	IssueTx(ctx context.Context, q db.Querier, docType string) (fiscal.IssuedNumber, error)
}

// InventoryPort posts and reverses stock movements inside the transaction.
type InventoryPort interface {
	ApplyTx(ctx context.Context, q db.Querier, input inventory.MovementInput) (inventory.MovementResult, error)
	ReverseTx(ctx context.Context, q db.Querier, lines []inventory.ReversalLine, refDoc, reason string, actorID int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the sale workflows.
type Service struct {
	repo   RepositoryPort
	fiscal FiscalPort
	inv    InventoryPort
	audit  AuditPort
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, fiscalSvc FiscalPort, inv InventoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, fiscal: fiscalSvc, inv: inv, audit: audit, now: time.Now}
}

// CreateResult carries the created invoice plus the NCF issuance details
// when a fiscal document type was requested.
type CreateResult struct {
	Invoice Invoice              `json:"invoice"`
	Fiscal  *fiscal.IssuedNumber `json:"fiscal,omitempty"`
}

// CreateInvoice runs the standard sale workflow in one transaction.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (CreateResult, error) {
	var result CreateResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		result, err = s.createSaleTx(ctx, q, input, nil)
		return err
	})
	if err != nil {
		return CreateResult{}, err
	}
	s.recordAudit(ctx, input.ActorID, "invoicing:create", result.Invoice)
	return result, nil
}

// CreatePOSSale runs the checkout workflow. Checkout is cash only: the
// amount received must cover the grand total before anything is
// persisted, and the change is returned.
func (s *Service) CreatePOSSale(ctx context.Context, input POSInput) (POSResult, error) {
	switch input.SaleType {
	case "", SaleCash:
		input.SaleType = SaleCash
	default:
		return POSResult{}, ErrPOSCashOnly
	}
	var result POSResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		created, err := s.createSaleTx(ctx, q, input.InvoiceInput, &input)
		if err != nil {
			return err
		}
		result.Invoice = created.Invoice
		result.Change = input.AmountReceived.Sub(created.Invoice.GrandTotal)

		last, err := s.repo.LastReceiptNumber(ctx, q)
		if err != nil {
			return err
		}
		payment := Payment{
			ReceiptNumber: shared.NextDocumentNumber(shared.PrefixReceipt, last),
			InvoiceID:     created.Invoice.ID,
			Amount:        created.Invoice.GrandTotal,
			Method:        input.Method,
			ReceivedAt:    s.now().UTC(),
		}
		id, err := s.repo.InsertPayment(ctx, q, payment)
		if err != nil {
			return shared.WithKind(shared.KindIntegrity, err)
		}
		payment.ID = id
		result.Payment = payment
		return nil
	})
	if err != nil {
		return POSResult{}, err
	}
	s.recordAudit(ctx, input.ActorID, "invoicing:pos", result.Invoice)
	return result, nil
}

// createSaleTx is the shared sale path. The POS variant validates payment
// after totals are known and before any row is written.
func (s *Service) createSaleTx(ctx context.Context, q db.Querier, input InvoiceInput, pos *POSInput) (CreateResult, error) {
	if len(input.Lines) == 0 {
		return CreateResult{}, ErrEmptyInvoice
	}
	customer, err := s.repo.CustomerForUpdate(ctx, q, input.CustomerID)
	if err != nil {
		return CreateResult{}, err
	}

	// First pass is read-only: load products and compute every line so the
	// POS payment check can run before any persistence.
	computed := make([]tax.LineTotals, 0, len(input.Lines))
	lines := make([]InvoiceLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return CreateResult{}, shared.NewError(shared.KindValidation, "line quantity must be positive")
		}
		product, err := s.repo.ProductForSale(ctx, q, line.ProductID)
		if err != nil {
			return CreateResult{}, err
		}
		price := product.UnitPrice
		if line.UnitPrice != nil {
			price = *line.UnitPrice
		}
		totals := tax.ComputeLine(tax.LineInput{
			UnitPrice:     price,
			Quantity:      line.Quantity,
			Discount:      line.Discount,
			TaxApplicable: product.TaxApplicable,
			TaxRate:       product.TaxRate,
		})
		computed = append(computed, totals)
		lines = append(lines, InvoiceLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: price,
			Discount:  line.Discount,
			Subtotal:  totals.Subtotal,
			TaxAmount: totals.TaxAmount,
			Total:     totals.Total,
		})
	}
	docTotals := tax.Aggregate(computed, input.Discount)

	if pos != nil && pos.AmountReceived.LessThan(docTotals.GrandTotal) {
		return CreateResult{}, ErrInsufficientPayment
	}

	last, err := s.repo.LastInvoiceNumber(ctx, q)
	if err != nil {
		return CreateResult{}, err
	}
	number := shared.NextDocumentNumber(shared.PrefixInvoice, last)

	var result CreateResult
	var fiscalNumber *string
	if input.FiscalDocType != "" {
		issued, err := s.fiscal.IssueTx(ctx, q, input.FiscalDocType)
		if err != nil {
			return CreateResult{}, err
		}
		fiscalNumber = &issued.NCF
		result.Fiscal = &issued
	}

	invoice := Invoice{
		Number:       number,
		FiscalNumber: fiscalNumber,
		CustomerID:   customer.ID,
		Subtotal:     docTotals.Subtotal,
		TaxTotal:     docTotals.TaxTotal,
		Discount:     input.Discount,
		GrandTotal:   docTotals.GrandTotal,
		SaleType:     input.SaleType,
		CreatedAt:    s.now().UTC(),
	}
	switch input.SaleType {
	case SaleCredit:
		invoice.AmountPaid = decimal.Zero
		invoice.BalanceDue = docTotals.GrandTotal
		invoice.Status = StatusPending
	default:
		invoice.AmountPaid = docTotals.GrandTotal
		invoice.BalanceDue = decimal.Zero
		invoice.Status = StatusPaid
	}

	id, err := s.repo.InsertInvoice(ctx, q, invoice)
	if err != nil {
		return CreateResult{}, shared.WithKind(shared.KindIntegrity, err)
	}
	invoice.ID = id

	for i := range lines {
		lineID, err := s.repo.InsertLine(ctx, q, id, lines[i])
		if err != nil {
			return CreateResult{}, shared.WithKind(shared.KindIntegrity, err)
		}
		lines[i].ID = lineID

		_, err = s.inv.ApplyTx(ctx, q, inventory.MovementInput{
			ProductID:         lines[i].ProductID,
			Direction:         inventory.DirectionOut,
			Quantity:          lines[i].Quantity,
			ReferenceDocument: number,
			ActorID:           input.ActorID,
		})
		if err != nil {
			return CreateResult{}, err
		}
	}
	invoice.Lines = lines

	if input.SaleType == SaleCredit {
		_, err := s.repo.InsertReceivable(ctx, q, Receivable{
			InvoiceID:      id,
			CustomerID:     customer.ID,
			OriginalAmount: docTotals.GrandTotal,
			PaidAmount:     decimal.Zero,
			Balance:        docTotals.GrandTotal,
			Status:         ReceivableCurrent,
		})
		if err != nil {
			return CreateResult{}, shared.WithKind(shared.KindIntegrity, err)
		}
		if err := s.repo.AdjustCustomerBalance(ctx, q, customer.ID, docTotals.GrandTotal); err != nil {
			return CreateResult{}, shared.WithKind(shared.KindIntegrity, err)
		}
	}

	result.Invoice = invoice
	return result, nil
}

// VoidInvoice reverses an invoice: compensating IN movement per line,
// receivable settled and customer balance released for credit sales, then
// the terminal voided state.
func (s *Service) VoidInvoice(ctx context.Context, invoiceID int64, reason string, actorID int64) (Invoice, error) {
	if reason == "" {
		return Invoice{}, ErrMissingReason
	}
	var voided Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		invoice, err := s.repo.InvoiceForUpdate(ctx, q, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Voided {
			return ErrAlreadyVoided
		}

		reversals := make([]inventory.ReversalLine, 0, len(invoice.Lines))
		for _, line := range invoice.Lines {
			reversals = append(reversals, inventory.ReversalLine{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		if err := s.inv.ReverseTx(ctx, q, reversals, invoice.Number, "void: "+reason, actorID); err != nil {
			return err
		}

		if invoice.SaleType == SaleCredit {
			rec, err := s.repo.ReceivableForUpdate(ctx, q, invoice.ID)
			if err != nil {
				return err
			}
			if err := s.repo.AdjustCustomerBalance(ctx, q, invoice.CustomerID, invoice.BalanceDue.Neg()); err != nil {
				return shared.WithKind(shared.KindIntegrity, err)
			}
			if err := s.repo.UpdateReceivable(ctx, q, rec.ID, rec.PaidAmount, decimal.Zero, ReceivableSettled); err != nil {
				return shared.WithKind(shared.KindIntegrity, err)
			}
		}

		at := s.now().UTC()
		if err := s.repo.MarkVoided(ctx, q, invoice.ID, reason, at); err != nil {
			return shared.WithKind(shared.KindIntegrity, err)
		}
		invoice.Voided = true
		invoice.Status = StatusVoided
		invoice.VoidReason = reason
		invoice.VoidedAt = &at
		voided = invoice
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, actorID, "invoicing:void", voided)
	return voided, nil
}

// ApplyPayment applies a payment to a pending or partial invoice and
// mirrors the decrement onto the receivable and the customer balance.
func (s *Service) ApplyPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		invoice, err := s.repo.InvoiceForUpdate(ctx, q, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Voided {
			return ErrInvoiceVoided
		}
		if !input.Amount.IsPositive() || input.Amount.GreaterThan(invoice.BalanceDue) {
			return ErrInvalidPaymentAmount
		}

		last, err := s.repo.LastReceiptNumber(ctx, q)
		if err != nil {
			return err
		}
		payment = Payment{
			ReceiptNumber: shared.NextDocumentNumber(shared.PrefixReceipt, last),
			InvoiceID:     invoice.ID,
			Amount:        input.Amount,
			Method:        input.Method,
			ReceivedAt:    s.now().UTC(),
		}
		id, err := s.repo.InsertPayment(ctx, q, payment)
		if err != nil {
			return shared.WithKind(shared.KindIntegrity, err)
		}
		payment.ID = id

		newPaid := invoice.AmountPaid.Add(input.Amount)
		newBalance := invoice.BalanceDue.Sub(input.Amount)
		status := StatusPartial
		if newBalance.LessThanOrEqual(decimal.Zero) {
			status = StatusPaid
		}
		if err := s.repo.UpdateInvoicePayment(ctx, q, invoice.ID, newPaid, newBalance, status); err != nil {
			return shared.WithKind(shared.KindIntegrity, err)
		}

		if invoice.SaleType == SaleCredit {
			rec, err := s.repo.ReceivableForUpdate(ctx, q, invoice.ID)
			if err != nil {
				return err
			}
			recStatus := ReceivableCurrent
			recBalance := rec.Balance.Sub(input.Amount)
			if recBalance.LessThanOrEqual(decimal.Zero) {
				recStatus = ReceivableSettled
			}
			if err := s.repo.UpdateReceivable(ctx, q, rec.ID, rec.PaidAmount.Add(input.Amount), recBalance, recStatus); err != nil {
				return shared.WithKind(shared.KindIntegrity, err)
			}
			if err := s.repo.AdjustCustomerBalance(ctx, q, invoice.CustomerID, input.Amount.Neg()); err != nil {
				return shared.WithKind(shared.KindIntegrity, err)
			}
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "invoicing:payment",
			Entity:   "payment",
			EntityID: payment.ReceiptNumber,
			Meta: map[string]any{
				"invoice_id": input.InvoiceID,
				"amount":     input.Amount.String(),
			},
		})
	}
	return payment, nil
}

// GetInvoice returns an invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns recent invoices.
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListInvoices(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, invoice Invoice) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"customer_id": invoice.CustomerID,
		"grand_total": invoice.GrandTotal.String(),
	}
	if invoice.FiscalNumber != nil {
		meta["fiscal_number"] = *invoice.FiscalNumber
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: invoice.Number,
		Meta:     meta,
	})
}
