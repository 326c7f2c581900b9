package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/larimar-erp/larimar-erp/internal/app"
	"github.com/larimar-erp/larimar-erp/internal/fiscal"
	"github.com/larimar-erp/larimar-erp/internal/platform/db"
	"github.com/larimar-erp/larimar-erp/internal/reports"
	"github.com/larimar-erp/larimar-erp/internal/shared"
	"github.com/larimar-erp/larimar-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	auditLogger := shared.NewAuditLogger(pool)
	fiscalService := fiscal.NewService(fiscal.NewRepository(pool), auditLogger, cfg.NCFWarnThresholdPct)
	reportsService := reports.NewService(reports.NewRepository(pool), cfg.CompanyRNC, cfg.ReportOutputDir)

	refreshJob := jobs.NewReportRefreshJob(reportsService, logger, nil)
	scanJob := jobs.NewNCFScanJob(fiscalService, logger)

	// Zero year/month means the previous calendar month at run time.
	refreshTask, err := jobs.NewReportRefreshTask(jobs.ReportRefreshPayload{})
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	scanTask, err := jobs.NewNCFScanTask(jobs.NCFScanPayload{WarnThresholdPct: cfg.NCFWarnThresholdPct})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskNCFScan, Handler: scanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			// Statutory reports for the closed month, on the 1st.
			{Spec: "0 3 1 * *", Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			// Daily capacity check on authorised NCF ranges.
			{Spec: "0 1 * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
