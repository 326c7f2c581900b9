package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/larimar-erp/larimar-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for report generation.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{type}", h.generate)
	r.Post("/{type}", h.saveAndExport)
	r.Get("/", h.generateAll)
}

func periodFromQuery(r *http.Request) (Period, error) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return Period{}, httpx.ValidationErrorf("year must be numeric")
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		return Period{}, httpx.ValidationErrorf("month must be numeric")
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Generate(r.Context(), chi.URLParam(r, "type"), period)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", report)
}

func (h *Handler) generateAll(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bundle, err := h.service.GenerateAll(r.Context(), period)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", bundle)
}

func (h *Handler) saveAndExport(w http.ResponseWriter, r *http.Request) {
	period, err := periodFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	reportType := chi.URLParam(r, "type")
	report, path, err := h.service.SaveAndExport(r.Context(), reportType, period)
	if err != nil {
		h.logger.Error("save report failed", slog.String("type", reportType), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("report exported",
		slog.String("type", reportType),
		slog.Int("records", len(report.Records)),
		slog.String("path", path))
	httpx.OK(w, http.StatusCreated, "report saved", map[string]any{
		"report": report,
		"file":   path,
	})
}
