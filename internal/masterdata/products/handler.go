package products

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/masterdata/shared"
	"github.com/larimar-erp/larimar-erp/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers product CRUD routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
}

type productRequest struct {
	Code          string `json:"code" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description,omitempty"`
	Category      string `json:"category,omitempty"`
	UnitPrice     string `json:"unit_price" validate:"required"`
	TaxApplicable bool   `json:"tax_applicable"`
	TaxRate       string `json:"tax_rate,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := filtersFromQuery(r)
	products, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", map[string]any{"items": products, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", product)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	product, err := decodeProduct(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), product)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "product created", created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := decodeProduct(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Update(r.Context(), id, product); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "product updated", nil)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "product deactivated", nil)
}

func decodeProduct(r *http.Request) (Product, error) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Product{}, err
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		return Product{}, httpx.ValidationErrorf("unit_price must be numeric")
	}
	rate := decimal.Zero
	if req.TaxRate != "" {
		if rate, err = decimal.NewFromString(req.TaxRate); err != nil {
			return Product{}, httpx.ValidationErrorf("tax_rate must be numeric")
		}
	}
	return Product{
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		UnitPrice:     price,
		TaxApplicable: req.TaxApplicable,
		TaxRate:       rate,
	}, nil
}

func filtersFromQuery(r *http.Request) shared.ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return shared.ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}.Normalize()
}
