package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/larimar-erp/larimar-erp/internal/fiscal"
	"github.com/larimar-erp/larimar-erp/internal/inventory"
	"github.com/larimar-erp/larimar-erp/internal/invoicing"
	"github.com/larimar-erp/larimar-erp/internal/masterdata/customers"
	"github.com/larimar-erp/larimar-erp/internal/masterdata/products"
	"github.com/larimar-erp/larimar-erp/internal/masterdata/suppliers"
	"github.com/larimar-erp/larimar-erp/internal/purchasing"
	"github.com/larimar-erp/larimar-erp/internal/reports"
	"github.com/larimar-erp/larimar-erp/internal/taxid"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ProductsHandler   *products.Handler
	CustomersHandler  *customers.Handler
	SuppliersHandler  *suppliers.Handler
	InventoryHandler  *inventory.Handler
	FiscalHandler     *fiscal.Handler
	PurchasingHandler *purchasing.Handler
	InvoicingHandler  *invoicing.Handler
	ReportsHandler    *reports.Handler
	TaxIDHandler      *taxid.Handler
}

// NewRouter constructs the chi.Router with Larimar defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/products", params.ProductsHandler.MountRoutes)
		api.Route("/customers", params.CustomersHandler.MountRoutes)
		api.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		api.Route("/inventory", params.InventoryHandler.MountRoutes)
		api.Route("/ncf", params.FiscalHandler.MountRoutes)
		api.Route("/purchases", params.PurchasingHandler.MountRoutes)
		api.Route("/invoices", params.InvoicingHandler.MountRoutes)
		api.Route("/pos", params.InvoicingHandler.MountPOSRoutes)
		api.Route("/reports", params.ReportsHandler.MountRoutes)
		api.Route("/taxpayers", params.TaxIDHandler.MountRoutes)
	})

	return r
}
