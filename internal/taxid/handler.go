package taxid

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/larimar-erp/larimar-erp/internal/platform/httpx"
)

// Handler exposes the validator lookup.
type Handler struct {
	logger *slog.Logger
	client *Client
}

// NewHandler constructs taxid handler.
func NewHandler(logger *slog.Logger, client *Client) *Handler {
	return &Handler{logger: logger, client: client}
}

// MountRoutes registers tax id routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.validate)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	result, err := h.client.Validate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("tax id validation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", result)
}
