package purchasing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for purchasing.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs purchasing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createPurchase)
	r.Post("/from-movement", h.createFromMovement)
	r.Get("/", h.listPurchases)
	r.Get("/{id}", h.getPurchase)
}

type supplierPayloadRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=formal informal"`
	SupplierID   int64  `json:"supplier_id,omitempty"`
	FiscalNumber string `json:"fiscal_number,omitempty"`
	Name         string `json:"name,omitempty"`
	NationalID   string `json:"national_id,omitempty"`
}

func (req supplierPayloadRequest) toPayload() SupplierPayload {
	return SupplierPayload{
		Kind:         SupplierKind(req.Kind),
		SupplierID:   req.SupplierID,
		FiscalNumber: req.FiscalNumber,
		Name:         req.Name,
		NationalID:   req.NationalID,
	}
}

type purchaseLineRequest struct {
	ProductID     int64  `json:"product_id" validate:"required"`
	Quantity      string `json:"quantity" validate:"required"`
	UnitCost      string `json:"unit_cost" validate:"required"`
	TaxApplicable bool   `json:"tax_applicable"`
	TaxRate       string `json:"tax_rate,omitempty"`
}

func (req purchaseLineRequest) toInput() (LineInput, error) {
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return LineInput{}, httpx.ValidationErrorf("quantity must be numeric")
	}
	cost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		return LineInput{}, httpx.ValidationErrorf("unit_cost must be numeric")
	}
	rate := decimal.Zero
	if req.TaxRate != "" {
		if rate, err = decimal.NewFromString(req.TaxRate); err != nil {
			return LineInput{}, httpx.ValidationErrorf("tax_rate must be numeric")
		}
	}
	return LineInput{
		ProductID:     req.ProductID,
		Quantity:      qty,
		UnitCost:      cost,
		TaxApplicable: req.TaxApplicable,
		TaxRate:       rate,
	}, nil
}

type purchaseRequest struct {
	Supplier     supplierPayloadRequest `json:"supplier" validate:"required"`
	Lines        []purchaseLineRequest  `json:"lines" validate:"required,min=1,dive"`
	PurchaseType string                 `json:"purchase_type" validate:"required,oneof=cash credit"`
	Notes        string                 `json:"notes,omitempty"`
	ActorID      int64                  `json:"actor_id,omitempty"`
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, lr := range req.Lines {
		line, err := lr.toInput()
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		lines = append(lines, line)
	}
	purchase, err := h.service.CreatePurchase(r.Context(), PurchaseInput{
		Supplier:     req.Supplier.toPayload(),
		Lines:        lines,
		PurchaseType: PurchaseType(req.PurchaseType),
		Notes:        req.Notes,
		ActorID:      req.ActorID,
	})
	if err != nil {
		h.logger.Warn("create purchase failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "purchase recorded", purchase)
}

type movementPurchaseRequest struct {
	ProductID     int64                  `json:"product_id" validate:"required"`
	Quantity      string                 `json:"quantity" validate:"required"`
	UnitCost      string                 `json:"unit_cost" validate:"required"`
	TaxApplicable bool                   `json:"tax_applicable"`
	TaxRate       string                 `json:"tax_rate,omitempty"`
	Supplier      supplierPayloadRequest `json:"supplier" validate:"required"`
	PurchaseType  string                 `json:"purchase_type" validate:"required,oneof=cash credit"`
	Reason        string                 `json:"reason,omitempty"`
	ActorID       int64                  `json:"actor_id,omitempty"`
}

func (h *Handler) createFromMovement(w http.ResponseWriter, r *http.Request) {
	var req movementPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "quantity must be numeric")
		return
	}
	cost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "unit_cost must be numeric")
		return
	}
	rate := decimal.Zero
	if req.TaxRate != "" {
		if rate, err = decimal.NewFromString(req.TaxRate); err != nil {
			httpx.Fail(w, http.StatusBadRequest, "tax_rate must be numeric")
			return
		}
	}
	purchase, err := h.service.CreateFromMovement(r.Context(), MovementPurchaseInput{
		ProductID:     req.ProductID,
		Quantity:      qty,
		UnitCost:      cost,
		TaxApplicable: req.TaxApplicable,
		TaxRate:       rate,
		Supplier:      req.Supplier.toPayload(),
		PurchaseType:  PurchaseType(req.PurchaseType),
		Reason:        req.Reason,
		ActorID:       req.ActorID,
	})
	if err != nil {
		h.logger.Warn("create purchase from movement failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "purchase recorded", purchase)
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid purchase id")
		return
	}
	purchase, err := h.service.GetPurchase(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", purchase)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	filter := PurchaseFilter{}
	q := r.URL.Query()
	if v := q.Get("supplier_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid supplier_id")
			return
		}
		filter.SupplierID = id
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
	purchases, err := h.service.ListPurchases(r.Context(), filter)
	if err != nil {
		h.logger.Error("list purchases", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", purchases)
}
