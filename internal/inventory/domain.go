// Package inventory applies stock movements and maintains moving-average
// cost. Every stock change appends an immutable movement row; reversals are
// compensating movements, never deletions.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// Direction enumerates supported stock movements.
type Direction string

const (
	// DirectionIn represents an inbound movement (purchase, void reversal).
	DirectionIn Direction = "IN"
	// DirectionOut represents an outbound movement (sale).
	DirectionOut Direction = "OUT"
	// DirectionAdjust sets the on-hand quantity to an absolute value.
	DirectionAdjust Direction = "ADJUST"
)

// ProductStock is the ledger's view of a product row.
type ProductStock struct {
	ID             int64
	Code           string
	Name           string
	QuantityOnHand decimal.Decimal
	AverageCost    decimal.Decimal
}

// Movement is an append-only audit record of one stock change.
type Movement struct {
	ID                int64           `json:"id"`
	Code              string          `json:"code"`
	ProductID         int64           `json:"product_id"`
	Direction         Direction       `json:"direction"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	ReferenceDocument string          `json:"reference_document,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	ActorID           int64           `json:"actor_id,omitempty"`
	PostedAt          time.Time       `json:"posted_at"`
}

// MovementInput describes a requested stock change. UnitCost is only
// consulted on inbound movements; when nil the average cost is left alone.
type MovementInput struct {
	ProductID         int64
	Direction         Direction
	Quantity          decimal.Decimal
	UnitCost          *decimal.Decimal
	ReferenceDocument string
	Reason            string
	ActorID           int64
}

// MovementResult reports the product state after a movement.
type MovementResult struct {
	Movement       Movement        `json:"movement"`
	NewQuantity    decimal.Decimal `json:"new_quantity"`
	NewAverageCost decimal.Decimal `json:"new_average_cost"`
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

var (
	// ErrProductNotFound indicates an unknown product reference.
	ErrProductNotFound = shared.NewError(shared.KindNotFound, "product not found")
	// ErrInsufficientStock triggered when an outbound movement exceeds the
	// on-hand quantity.
	ErrInsufficientStock = shared.NewError(shared.KindStateConflict, "insufficient stock")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = shared.NewError(shared.KindValidation, "quantity must be positive")
	// ErrInvalidDirection indicates an unknown movement direction.
	ErrInvalidDirection = shared.NewError(shared.KindValidation, "unknown movement direction")
)
