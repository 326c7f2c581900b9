package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/larimar-erp/larimar-erp/internal/reports"
)

// ReportRefreshJob rebuilds a statutory report and persists the result.
type ReportRefreshJob struct {
	reports *reports.Service
	logger  *slog.Logger
	clock   func() time.Time
}

// NewReportRefreshJob constructs the job. clock may be nil.
func NewReportRefreshJob(svc *reports.Service, logger *slog.Logger, clock func() time.Time) *ReportRefreshJob {
	if clock == nil {
		clock = time.Now
	}
	return &ReportRefreshJob{reports: svc, logger: logger, clock: clock}
}

// Handle processes TaskReportRefresh tasks. An empty type rebuilds all
// three reports for the period; year/month zero means the previous
// calendar month, which is what the monthly cron submits.
func (j *ReportRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReportRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("report refresh payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	period := j.resolvePeriod(payload)
	types := []string{reports.Type606, reports.Type607, reports.Type608}
	if payload.Type != "" {
		types = []string{payload.Type}
	}

	for _, reportType := range types {
		report, path, err := j.reports.SaveAndExport(ctx, reportType, period)
		if err != nil {
			j.logger.Error("report refresh",
				slog.String("type", reportType),
				slog.Int("year", period.Year),
				slog.Int("month", int(period.Month)),
				slog.Any("error", err))
			return err
		}
		j.logger.Info("report refreshed",
			slog.String("type", reportType),
			slog.Int("records", len(report.Records)),
			slog.String("path", path))
	}
	return nil
}

func (j *ReportRefreshJob) resolvePeriod(payload ReportRefreshPayload) reports.Period {
	if payload.Year != 0 && payload.Month != 0 {
		return reports.Period{Year: payload.Year, Month: time.Month(payload.Month)}
	}
	prev := j.clock().UTC().AddDate(0, 0, -j.clock().UTC().Day())
	return reports.Period{Year: prev.Year(), Month: prev.Month()}
}
