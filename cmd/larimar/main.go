package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/larimar-erp/larimar-erp/internal/app"
	"github.com/larimar-erp/larimar-erp/internal/fiscal"
	"github.com/larimar-erp/larimar-erp/internal/inventory"
	"github.com/larimar-erp/larimar-erp/internal/invoicing"
	"github.com/larimar-erp/larimar-erp/internal/masterdata/customers"
	"github.com/larimar-erp/larimar-erp/internal/masterdata/products"
	"github.com/larimar-erp/larimar-erp/internal/masterdata/suppliers"
	"github.com/larimar-erp/larimar-erp/internal/platform/cache"
	"github.com/larimar-erp/larimar-erp/internal/platform/db"
	"github.com/larimar-erp/larimar-erp/internal/purchasing"
	"github.com/larimar-erp/larimar-erp/internal/reports"
	"github.com/larimar-erp/larimar-erp/internal/shared"
	"github.com/larimar-erp/larimar-erp/internal/tax"
	"github.com/larimar-erp/larimar-erp/internal/taxid"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, tax id lookups uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	productsService := products.NewService(products.NewRepository(pool))
	customersService := customers.NewService(customers.NewRepository(pool))
	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))

	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger)
	fiscalService := fiscal.NewService(fiscal.NewRepository(pool), auditLogger, cfg.NCFWarnThresholdPct)

	retention := tax.RetentionFromPercents(cfg.ITBISRetentionPct, cfg.IncomeRetentionPct)
	purchasingService := purchasing.NewService(purchasing.NewRepository(pool), inventoryService, auditLogger, retention, cfg.NCFInformalPrefix)
	invoicingService := invoicing.NewService(invoicing.NewRepository(pool), fiscalService, inventoryService, auditLogger)
	reportsService := reports.NewService(reports.NewRepository(pool), cfg.CompanyRNC, cfg.ReportOutputDir)

	taxIDClient := taxid.NewClient(cfg.TaxIDValidatorURL, cfg.TaxIDValidatorTimeout, redisClient, cfg.TaxIDCacheTTL)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ProductsHandler:   products.NewHandler(logger, productsService),
		CustomersHandler:  customers.NewHandler(logger, customersService),
		SuppliersHandler:  suppliers.NewHandler(logger, suppliersService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		FiscalHandler:     fiscal.NewHandler(logger, fiscalService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		InvoicingHandler:  invoicing.NewHandler(logger, invoicingService),
		ReportsHandler:    reports.NewHandler(logger, reportsService),
		TaxIDHandler:      taxid.NewHandler(logger, taxIDClient),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
