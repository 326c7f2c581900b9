package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory movements.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.postMovement)
	r.Get("/movements", h.listMovements)
}

type movementRequest struct {
	ProductID int64  `json:"product_id" validate:"required"`
	Direction string `json:"direction" validate:"required,oneof=IN OUT ADJUST"`
	Quantity  string `json:"quantity" validate:"required"`
	UnitCost  string `json:"unit_cost,omitempty"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
	ActorID   int64  `json:"actor_id,omitempty"`
}

func (h *Handler) postMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "quantity must be numeric")
		return
	}
	input := MovementInput{
		ProductID:         req.ProductID,
		Direction:         Direction(req.Direction),
		Quantity:          qty,
		ReferenceDocument: req.Reference,
		Reason:            req.Reason,
		ActorID:           req.ActorID,
	}
	if req.UnitCost != "" {
		cost, err := decimal.NewFromString(req.UnitCost)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "unit_cost must be numeric")
			return
		}
		input.UnitCost = &cost
	}
	result, err := h.service.Apply(r.Context(), input)
	if err != nil {
		h.logger.Warn("post movement failed", slog.Int64("product_id", req.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "movement posted", result)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{}
	q := r.URL.Query()
	if v := q.Get("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid product_id")
			return
		}
		filter.ProductID = id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", movements)
}
