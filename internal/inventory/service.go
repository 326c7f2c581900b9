package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/platform/db"
	"github.com/larimar-erp/larimar-erp/internal/shared"
	"github.com/larimar-erp/larimar-erp/internal/tax"
)

// RepositoryPort abstracts repository usage for service. Querier-taking
// methods run inside the caller's transaction so stock math commits with
// the document that caused it.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, db.Querier) error) error
	GetProductForUpdate(ctx context.Context, q db.Querier, productID int64) (ProductStock, error)
	UpdateStock(ctx context.Context, q db.Querier, productID int64, qty, avgCost decimal.Decimal) error
	InsertMovement(ctx context.Context, q db.Querier, m Movement) (int64, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Apply posts a movement in its own transaction.
func (s *Service) Apply(ctx context.Context, input MovementInput) (MovementResult, error) {
	var result MovementResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		result, err = s.ApplyTx(ctx, q, input)
		return err
	})
	if err != nil {
		return MovementResult{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("inventory:%s", input.Direction),
			Entity:   "inventory_movement",
			EntityID: result.Movement.Code,
			Meta: map[string]any{
				"product_id": input.ProductID,
				"quantity":   input.Quantity.String(),
				"reference":  input.ReferenceDocument,
			},
		})
	}
	return result, nil
}

// ApplyTx posts a movement inside the caller's transaction. The product row
// is locked for the duration, the stock figures updated, and exactly one
// immutable movement row appended.
func (s *Service) ApplyTx(ctx context.Context, q db.Querier, input MovementInput) (MovementResult, error) {
	if input.ProductID == 0 {
		return MovementResult{}, fmt.Errorf("%w: product required", ErrProductNotFound)
	}
	if !input.Quantity.IsPositive() && input.Direction != DirectionAdjust {
		return MovementResult{}, ErrInvalidQuantity
	}
	if input.Quantity.IsNegative() {
		return MovementResult{}, ErrInvalidQuantity
	}

	product, err := s.repo.GetProductForUpdate(ctx, q, input.ProductID)
	if err != nil {
		return MovementResult{}, err
	}

	newQty := product.QuantityOnHand
	newAvg := product.AverageCost
	unitCost := product.AverageCost

	switch input.Direction {
	case DirectionOut:
		if product.QuantityOnHand.LessThan(input.Quantity) {
			return MovementResult{}, fmt.Errorf("%w: %s (requested %s, available %s)",
				ErrInsufficientStock, product.Name, input.Quantity.String(), product.QuantityOnHand.String())
		}
		newQty = product.QuantityOnHand.Sub(input.Quantity)
	case DirectionIn:
		newQty = product.QuantityOnHand.Add(input.Quantity)
		if input.UnitCost != nil {
			unitCost = *input.UnitCost
			totalCost := product.AverageCost.Mul(product.QuantityOnHand).Add(unitCost.Mul(input.Quantity))
			if newQty.IsPositive() {
				newAvg = tax.RoundMoney(totalCost.Div(newQty))
			}
		}
	case DirectionAdjust:
		newQty = input.Quantity
	default:
		return MovementResult{}, ErrInvalidDirection
	}

	if err := s.repo.UpdateStock(ctx, q, product.ID, newQty, newAvg); err != nil {
		return MovementResult{}, shared.WithKind(shared.KindIntegrity, err)
	}

	movement := Movement{
		Code:              uuid.NewString(),
		ProductID:         product.ID,
		Direction:         input.Direction,
		Quantity:          input.Quantity,
		UnitCost:          unitCost,
		ReferenceDocument: input.ReferenceDocument,
		Reason:            input.Reason,
		ActorID:           input.ActorID,
		PostedAt:          s.now().UTC(),
	}
	id, err := s.repo.InsertMovement(ctx, q, movement)
	if err != nil {
		return MovementResult{}, shared.WithKind(shared.KindIntegrity, err)
	}
	movement.ID = id

	return MovementResult{Movement: movement, NewQuantity: newQty, NewAverageCost: newAvg}, nil
}

// ReversalLine identifies one line of a voided document to put back.
type ReversalLine struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// ReverseTx posts compensating IN movements for the given lines inside the
// caller's transaction. Quantity is restored; cost basis is not touched.
func (s *Service) ReverseTx(ctx context.Context, q db.Querier, lines []ReversalLine, refDoc, reason string, actorID int64) error {
	for _, line := range lines {
		_, err := s.ApplyTx(ctx, q, MovementInput{
			ProductID:         line.ProductID,
			Direction:         DirectionIn,
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

// ListMovements returns the movement audit trail.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 200
	}
	return s.repo.ListMovements(ctx, filter)
}
