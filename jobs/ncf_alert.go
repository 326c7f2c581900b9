package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/larimar-erp/larimar-erp/internal/fiscal"
)

// NCFScanJob walks the active fiscal ranges and warns when a document
// type is close to exhausting its authorised sequence.
type NCFScanJob struct {
	fiscal *fiscal.Service
	logger *slog.Logger
}

// NewNCFScanJob constructs the job.
func NewNCFScanJob(svc *fiscal.Service, logger *slog.Logger) *NCFScanJob {
	return &NCFScanJob{fiscal: svc, logger: logger}
}

// Handle processes TaskNCFScan tasks.
func (j *NCFScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload NCFScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("ncf scan payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	threshold := payload.WarnThresholdPct
	if threshold <= 0 {
		threshold = 10
	}

	ranges, err := j.fiscal.ListRanges(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(ranges))
	low := 0
	for _, rng := range ranges {
		if !rng.Active || rng.Exhausted || seen[rng.DocumentType] {
			continue
		}
		seen[rng.DocumentType] = true

		pct, err := j.fiscal.PercentRemaining(ctx, rng.DocumentType)
		if err != nil {
			j.logger.Warn("ncf scan",
				slog.String("document_type", rng.DocumentType),
				slog.Any("error", err))
			continue
		}
		if pct < threshold {
			low++
			j.logger.Warn("fiscal sequence running low",
				slog.String("document_type", rng.DocumentType),
				slog.Float64("percent_remaining", pct))
		}
	}

	j.logger.Info("ncf scan finished",
		slog.Int("document_types", len(seen)),
		slog.Int("low", low))
	return nil
}
