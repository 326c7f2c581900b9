package fiscal

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/larimar-erp/larimar-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for NCF range administration and issuance.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs fiscal handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers fiscal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ranges", h.createRange)
	r.Get("/ranges", h.listRanges)
	r.Post("/ranges/{id}/deactivate", h.deactivateRange)
	r.Post("/{type}/issue", h.issue)
	r.Get("/{type}/peek", h.peek)
}

type createRangeRequest struct {
	DocumentType string `json:"document_type" validate:"required"`
	RangeStart   string `json:"range_start" validate:"required"`
	RangeEnd     string `json:"range_end" validate:"required"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

func (h *Handler) createRange(w http.ResponseWriter, r *http.Request) {
	var req createRangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateRangeInput{
		DocumentType: req.DocumentType,
		RangeStart:   req.RangeStart,
		RangeEnd:     req.RangeEnd,
	}
	if req.ExpiresAt != "" {
		expires, err := time.Parse("2006-01-02", req.ExpiresAt)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "expires_at must be YYYY-MM-DD")
			return
		}
		input.ExpiresAt = &expires
	}
	rng, err := h.service.CreateRange(r.Context(), input)
	if err != nil {
		h.logger.Error("create ncf range", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "fiscal sequence range registered", rng)
}

func (h *Handler) listRanges(w http.ResponseWriter, r *http.Request) {
	ranges, err := h.service.ListRanges(r.Context())
	if err != nil {
		h.logger.Error("list ncf ranges", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", ranges)
}

func (h *Handler) deactivateRange(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid range id")
		return
	}
	if err := h.service.DeactivateRange(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "fiscal sequence range deactivated", nil)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")
	issued, err := h.service.Issue(r.Context(), docType)
	if err != nil {
		h.logger.Warn("issue ncf failed", slog.String("document_type", docType), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if issued.LowRemaining {
		h.logger.Warn("ncf range running low",
			slog.String("document_type", docType),
			slog.Float64("percent_remaining", issued.PercentRemaining))
	}
	httpx.OK(w, http.StatusOK, "fiscal number issued", issued)
}

func (h *Handler) peek(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")
	ncf, err := h.service.Peek(r.Context(), docType)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", map[string]string{"document_type": docType, "next_ncf": ncf})
}
