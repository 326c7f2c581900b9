package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportRefresh regenerates and persists one DGII report.
	TaskReportRefresh = "report:refresh"
	// TaskNCFScan checks remaining capacity on active fiscal ranges.
	TaskNCFScan = "ncf:scan"
)

// ReportRefreshPayload names the report and the period to rebuild.
type ReportRefreshPayload struct {
	Type  string `json:"type"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
}

// NewReportRefreshTask constructs a report refresh task.
func NewReportRefreshTask(payload ReportRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportRefresh, data), nil
}

// NCFScanPayload carries the warning threshold for the scan.
type NCFScanPayload struct {
	WarnThresholdPct float64 `json:"warn_threshold_pct"`
}

// NewNCFScanTask constructs a fiscal range scan task.
func NewNCFScanTask(payload NCFScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNCFScan, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueReportRefresh enqueues a report refresh for one period.
func (c *Client) EnqueueReportRefresh(ctx context.Context, payload ReportRefreshPayload) (*asynq.TaskInfo, error) {
	task, err := NewReportRefreshTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueNCFScan enqueues a fiscal range capacity scan.
func (c *Client) EnqueueNCFScan(ctx context.Context, payload NCFScanPayload) (*asynq.TaskInfo, error) {
	task, err := NewNCFScanTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.Timeout(time.Minute))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
