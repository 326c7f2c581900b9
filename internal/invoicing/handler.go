package invoicing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/larimar-erp/larimar-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for invoicing.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs invoicing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createInvoice)
	r.Get("/", h.listInvoices)
	r.Get("/{id}", h.getInvoice)
	r.Post("/{id}/void", h.voidInvoice)
	r.Post("/{id}/payments", h.applyPayment)
}

// MountPOSRoutes registers the checkout route.
func (h *Handler) MountPOSRoutes(r chi.Router) {
	r.Post("/sales", h.createPOSSale)
}

type invoiceLineRequest struct {
	ProductID int64  `json:"product_id" validate:"required"`
	Quantity  string `json:"quantity" validate:"required"`
	UnitPrice string `json:"unit_price,omitempty"`
	Discount  string `json:"discount,omitempty"`
}

func (req invoiceLineRequest) toInput() (LineInput, error) {
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return LineInput{}, httpx.ValidationErrorf("quantity must be numeric")
	}
	line := LineInput{ProductID: req.ProductID, Quantity: qty, Discount: decimal.Zero}
	if req.UnitPrice != "" {
		price, err := decimal.NewFromString(req.UnitPrice)
		if err != nil {
			return LineInput{}, httpx.ValidationErrorf("unit_price must be numeric")
		}
		line.UnitPrice = &price
	}
	if req.Discount != "" {
		if line.Discount, err = decimal.NewFromString(req.Discount); err != nil {
			return LineInput{}, httpx.ValidationErrorf("discount must be numeric")
		}
	}
	return line, nil
}

type invoiceRequest struct {
	CustomerID    int64                `json:"customer_id" validate:"required"`
	Lines         []invoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount      string               `json:"discount,omitempty"`
	SaleType      string               `json:"sale_type" validate:"required,oneof=cash credit"`
	FiscalDocType string               `json:"fiscal_doc_type,omitempty"`
	ActorID       int64                `json:"actor_id,omitempty"`
}

func (req invoiceRequest) toInput() (InvoiceInput, error) {
	lines := make([]LineInput, 0, len(req.Lines))
	for _, lr := range req.Lines {
		line, err := lr.toInput()
		if err != nil {
			return InvoiceInput{}, err
		}
		lines = append(lines, line)
	}
	discount := decimal.Zero
	if req.Discount != "" {
		var err error
		if discount, err = decimal.NewFromString(req.Discount); err != nil {
			return InvoiceInput{}, httpx.ValidationErrorf("discount must be numeric")
		}
	}
	return InvoiceInput{
		CustomerID:    req.CustomerID,
		Lines:         lines,
		Discount:      discount,
		SaleType:      SaleType(req.SaleType),
		FiscalDocType: req.FiscalDocType,
		ActorID:       req.ActorID,
	}, nil
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.logger.Warn("create invoice failed", slog.Int64("customer_id", req.CustomerID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if result.Fiscal != nil && result.Fiscal.LowRemaining {
		h.logger.Warn("ncf range running low",
			slog.String("document_type", result.Fiscal.DocumentType),
			slog.Float64("percent_remaining", result.Fiscal.PercentRemaining))
	}
	httpx.OK(w, http.StatusCreated, "invoice created", result)
}

type posRequest struct {
	invoiceRequest
	AmountReceived string `json:"amount_received" validate:"required"`
	Method         string `json:"method,omitempty"`
}

func (h *Handler) createPOSSale(w http.ResponseWriter, r *http.Request) {
	var req posRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := req.invoiceRequest.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	received, err := decimal.NewFromString(req.AmountReceived)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "amount_received must be numeric")
		return
	}
	result, err := h.service.CreatePOSSale(r.Context(), POSInput{
		InvoiceInput:   input,
		AmountReceived: received,
		Method:         req.Method,
	})
	if err != nil {
		h.logger.Warn("pos sale failed", slog.Int64("customer_id", req.CustomerID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "sale completed", result)
}

type voidRequest struct {
	Reason  string `json:"reason" validate:"required"`
	ActorID int64  `json:"actor_id,omitempty"`
}

func (h *Handler) voidInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.service.VoidInvoice(r.Context(), id, req.Reason, req.ActorID)
	if err != nil {
		h.logger.Warn("void invoice failed", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "invoice voided", invoice)
}

type paymentRequest struct {
	Amount  string `json:"amount" validate:"required"`
	Method  string `json:"method,omitempty"`
	ActorID int64  `json:"actor_id,omitempty"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "amount must be numeric")
		return
	}
	payment, err := h.service.ApplyPayment(r.Context(), PaymentInput{
		InvoiceID: id,
		Amount:    amount,
		Method:    req.Method,
		ActorID:   req.ActorID,
	})
	if err != nil {
		h.logger.Warn("apply payment failed", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "payment applied", payment)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", invoice)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	filter := InvoiceFilter{}
	q := r.URL.Query()
	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		filter.CustomerID = id
	}
	filter.Status = q.Get("status")
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
	invoices, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", invoices)
}
