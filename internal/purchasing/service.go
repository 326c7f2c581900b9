package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/inventory"
	"github.com/larimar-erp/larimar-erp/internal/platform/db"
	"github.com/larimar-erp/larimar-erp/internal/shared"
	"github.com/larimar-erp/larimar-erp/internal/tax"
)

// SupplierRecord is the purchasing view of a supplier row.
type SupplierRecord struct {
	ID        int64
	Code      string
	Name      string
	TaxID     string
	TaxIDType string
	Informal  bool
}

// RepositoryPort abstracts persistence. Querier-taking methods join the
// workflow transaction.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, db.Querier) error) error
	SupplierByID(ctx context.Context, q db.Querier, id int64) (SupplierRecord, error)
	SupplierByTaxID(ctx context.Context, q db.Querier, taxID string) (SupplierRecord, error)
	LastSupplierCode(ctx context.Context, q db.Querier) (string, error)
	InsertSupplier(ctx context.Context, q db.Querier, rec SupplierRecord) (int64, error)
	MaxFiscalWithPrefix(ctx context.Context, q db.Querier, prefix string) (string, error)
	LastPurchaseNumber(ctx context.Context, q db.Querier) (string, error)
	InsertPurchase(ctx context.Context, q db.Querier, p Purchase) (int64, error)
	InsertLine(ctx context.Context, q db.Querier, purchaseID int64, line PurchaseLine) (int64, error)
	GetPurchase(ctx context.Context, id int64) (Purchase, error)
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]Purchase, error)
}

// InventoryPort posts stock movements inside the purchase transaction.
type InventoryPort interface {
	ApplyTx(ctx context.Context, q db.Querier, input inventory.MovementInput) (inventory.MovementResult, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates purchase intake.
type Service struct {
	repo           RepositoryPort
	inv            InventoryPort
	audit          AuditPort
	retention      tax.RetentionConfig
	informalPrefix string
	now            func() time.Time
}

// NewService builds Service. informalPrefix is the NCF prefix used for
// informal purchase fiscal numbers, for example B11.
func NewService(repo RepositoryPort, inv InventoryPort, audit AuditPort, retention tax.RetentionConfig, informalPrefix string) *Service {
	return &Service{repo: repo, inv: inv, audit: audit, retention: retention, informalPrefix: informalPrefix, now: time.Now}
}

// ResolveSupplierTx resolves or creates the supplier for a purchase inside
// the caller's transaction. Informal resolution is idempotent by tax id.
func (s *Service) ResolveSupplierTx(ctx context.Context, q db.Querier, payload SupplierPayload) (ResolvedSupplier, error) {
	switch payload.Kind {
	case SupplierFormal:
		if payload.SupplierID == 0 || strings.TrimSpace(payload.FiscalNumber) == "" {
			return ResolvedSupplier{}, ErrMissingFormalFields
		}
		rec, err := s.repo.SupplierByID(ctx, q, payload.SupplierID)
		if err != nil {
			return ResolvedSupplier{}, err
		}
		return ResolvedSupplier{
			SupplierID:   rec.ID,
			TaxID:        rec.TaxID,
			FiscalNumber: payload.FiscalNumber,
			Informal:     rec.Informal,
		}, nil

	case SupplierInformal:
		nationalID, err := normalizeNationalID(payload.NationalID)
		if err != nil {
			return ResolvedSupplier{}, err
		}
		if strings.TrimSpace(payload.Name) == "" {
			return ResolvedSupplier{}, shared.NewError(shared.KindValidation, "informal supplier name is required")
		}
		resolved := ResolvedSupplier{TaxID: nationalID, Informal: true}
		rec, err := s.repo.SupplierByTaxID(ctx, q, nationalID)
		switch {
		case err == nil:
			resolved.SupplierID = rec.ID
		case errors.Is(err, ErrSupplierNotFound):
			last, err := s.repo.LastSupplierCode(ctx, q)
			if err != nil {
				return ResolvedSupplier{}, err
			}
			id, err := s.repo.InsertSupplier(ctx, q, SupplierRecord{
				Code:      shared.NextDocumentNumber(shared.PrefixSupplier, last),
				Name:      payload.Name,
				TaxID:     nationalID,
				TaxIDType: "CEDULA",
				Informal:  true,
			})
			if err != nil {
				return ResolvedSupplier{}, err
			}
			resolved.SupplierID = id
			resolved.Created = true
		default:
			return ResolvedSupplier{}, err
		}

		// Informal fiscal numbers are not drawn from the NCF ranges. The
		// next one continues the highest purchase fiscal number already
		// recorded with the configured prefix.
		lastFiscal, err := s.repo.MaxFiscalWithPrefix(ctx, q, s.informalPrefix)
		if err != nil {
			return ResolvedSupplier{}, err
		}
		resolved.FiscalNumber = nextInformalFiscal(s.informalPrefix, lastFiscal)
		return resolved, nil

	default:
		return ResolvedSupplier{}, shared.NewError(shared.KindValidation, "supplier kind must be formal or informal")
	}
}

// CreatePurchase runs the direct workflow: resolve supplier, compute
// totals, persist the purchase and apply one inbound movement per line,
// all in one transaction.
func (s *Service) CreatePurchase(ctx context.Context, input PurchaseInput) (Purchase, error) {
	if len(input.Lines) == 0 {
		return Purchase{}, ErrEmptyPurchase
	}
	for _, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return Purchase{}, shared.NewError(shared.KindValidation, "line quantity must be positive")
		}
		if line.UnitCost.IsNegative() {
			return Purchase{}, shared.NewError(shared.KindValidation, "line unit cost cannot be negative")
		}
	}

	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		resolved, err := s.ResolveSupplierTx(ctx, q, input.Supplier)
		if err != nil {
			return err
		}
		purchase, err = s.persistIntakeTx(ctx, q, purchaseIntake{
			supplier:     resolved,
			lines:        input.Lines,
			purchaseType: input.PurchaseType,
			notes:        input.Notes,
			actorID:      input.ActorID,
			applyStock:   true,
		})
		return err
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, input.ActorID, purchase)
	return purchase, nil
}

// CreateFromMovement runs the inventory-movement-triggered workflow. The
// originating movement is persisted first and the purchase derives a single
// line from its quantity and cost.
func (s *Service) CreateFromMovement(ctx context.Context, input MovementPurchaseInput) (Purchase, error) {
	if !input.Quantity.IsPositive() {
		return Purchase{}, shared.NewError(shared.KindValidation, "quantity must be positive")
	}
	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		resolved, err := s.ResolveSupplierTx(ctx, q, input.Supplier)
		if err != nil {
			return err
		}
		cost := input.UnitCost
		_, err = s.inv.ApplyTx(ctx, q, inventory.MovementInput{
			ProductID: input.ProductID,
			Direction: inventory.DirectionIn,
			Quantity:  input.Quantity,
			UnitCost:  &cost,
			Reason:    input.Reason,
			ActorID:   input.ActorID,
		})
		if err != nil {
			return err
		}
		purchase, err = s.persistIntakeTx(ctx, q, purchaseIntake{
			supplier: resolved,
			lines: []LineInput{{
				ProductID:     input.ProductID,
				Quantity:      input.Quantity,
				UnitCost:      input.UnitCost,
				TaxApplicable: input.TaxApplicable,
				TaxRate:       input.TaxRate,
			}},
			purchaseType: input.PurchaseType,
			actorID:      input.ActorID,
			applyStock:   false,
		})
		return err
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, input.ActorID, purchase)
	return purchase, nil
}

// purchaseIntake is the value both entry points converge on.
type purchaseIntake struct {
	supplier     ResolvedSupplier
	lines        []LineInput
	purchaseType PurchaseType
	notes        string
	actorID      int64
	applyStock   bool
}

func (s *Service) persistIntakeTx(ctx context.Context, q db.Querier, intake purchaseIntake) (Purchase, error) {
	computed := make([]tax.LineTotals, 0, len(intake.lines))
	lines := make([]PurchaseLine, 0, len(intake.lines))
	for _, line := range intake.lines {
		totals := tax.ComputeLine(tax.LineInput{
			UnitPrice:     line.UnitCost,
			Quantity:      line.Quantity,
			TaxApplicable: line.TaxApplicable,
			TaxRate:       line.TaxRate,
		})
		computed = append(computed, totals)
		lines = append(lines, PurchaseLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
			Subtotal:  totals.Subtotal,
			TaxAmount: totals.TaxAmount,
			Total:     totals.Total,
		})
	}
	docTotals := tax.Aggregate(computed, decimal.Zero)

	notes := intake.notes
	if intake.supplier.Informal {
		w := tax.ComputeWithholdings(docTotals.Subtotal, docTotals.TaxTotal, s.retention)
		note := fmt.Sprintf("ITBIS retained %s; income retained %s",
			w.ITBISRetained.StringFixed(2), w.IncomeRetained.StringFixed(2))
		if notes != "" {
			notes += " | "
		}
		notes += note
	}

	last, err := s.repo.LastPurchaseNumber(ctx, q)
	if err != nil {
		return Purchase{}, err
	}

	purchase := Purchase{
		Number:        shared.NextDocumentNumber(shared.PrefixPurchase, last),
		SupplierID:    intake.supplier.SupplierID,
		SupplierTaxID: intake.supplier.TaxID,
		FiscalNumber:  intake.supplier.FiscalNumber,
		Subtotal:      docTotals.Subtotal,
		TaxTotal:      docTotals.TaxTotal,
		GrandTotal:    docTotals.GrandTotal,
		PurchaseType:  intake.purchaseType,
		Status:        "recorded",
		Notes:         notes,
		CreatedAt:     s.now().UTC(),
	}
	id, err := s.repo.InsertPurchase(ctx, q, purchase)
	if err != nil {
		if isUniqueViolation(err) {
			return Purchase{}, fmt.Errorf("%w: %s", ErrFiscalNumberTaken, purchase.FiscalNumber)
		}
		return Purchase{}, shared.WithKind(shared.KindIntegrity, err)
	}
	purchase.ID = id

	for i := range lines {
		lineID, err := s.repo.InsertLine(ctx, q, id, lines[i])
		if err != nil {
			return Purchase{}, shared.WithKind(shared.KindIntegrity, err)
		}
		lines[i].ID = lineID

		if intake.applyStock {
			cost := lines[i].UnitCost
			_, err = s.inv.ApplyTx(ctx, q, inventory.MovementInput{
				ProductID:         lines[i].ProductID,
				Direction:         inventory.DirectionIn,
				Quantity:          lines[i].Quantity,
				UnitCost:          &cost,
				ReferenceDocument: purchase.Number,
				ActorID:           intake.actorID,
			})
			if err != nil {
				return Purchase{}, err
			}
		}
	}
	purchase.Lines = lines
	return purchase, nil
}

// GetPurchase returns a purchase with its lines.
func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

// ListPurchases returns recent purchases.
func (s *Service) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]Purchase, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListPurchases(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, purchase Purchase) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "purchasing:create",
		Entity:   "purchase",
		EntityID: purchase.Number,
		Meta: map[string]any{
			"supplier_id":   purchase.SupplierID,
			"fiscal_number": purchase.FiscalNumber,
			"grand_total":   purchase.GrandTotal.String(),
		},
	})
}

// normalizeNationalID strips common separators and checks for exactly 11
// numeric digits.
func normalizeNationalID(raw string) (string, error) {
	cleaned := strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(raw))
	if len(cleaned) != 11 {
		return "", fmt.Errorf("%w: got %q", ErrInvalidNationalID, raw)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: got %q", ErrInvalidNationalID, raw)
		}
	}
	return cleaned, nil
}

// nextInformalFiscal continues the informal purchase fiscal series. With no
// prior number the series starts at 1, zero-padded to eight digits after
// the prefix.
func nextInformalFiscal(prefix, last string) string {
	width := 8
	next := int64(1)
	if strings.HasPrefix(last, prefix) {
		suffix := last[len(prefix):]
		if n, err := strconv.ParseInt(suffix, 10, 64); err == nil {
			next = n + 1
			width = len(suffix)
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, width, next)
}
