package strategy

import (
	"context"
	"time"
)

const (
	JOB_EXIT_CODE_SUCCESS         = 200
	JOB_EXIT_CODE_FAILED          = 500
	JOB_EXIT_CODE_SKIPPED         = 204
	JOB_EXIT_CODE_PARTIAL_SUCCESS = 206
)

type JobType string

const (
	JobTypePositionMonitor JobType = "position_monitor"
	JobTypeDataCleanUp     JobType = "data_clean_up"
)

// JobRun identifies one execution. ID increases monotonically per job type.
type JobRun struct {
	ID        uint64
	Type      JobType
	StartedAt time.Time
}

type JobResult struct {
	ExitCode int32  `json:"exit_code"`
	Output   string `json:"output"`
}

// ResultLabel is the short outcome name used in logs and metrics.
func (r JobResult) ResultLabel() string {
	switch r.ExitCode {
	case JOB_EXIT_CODE_SUCCESS:
		return "success"
	case JOB_EXIT_CODE_SKIPPED:
		return "skipped"
	case JOB_EXIT_CODE_PARTIAL_SUCCESS:
		return "partial"
	default:
		return "failed"
	}
}

// JobExecutionStrategy defines the interface for different job execution strategies.
type JobExecutionStrategy interface {
	Execute(ctx context.Context, run JobRun) (JobResult, error)
	GetType() JobType
}
