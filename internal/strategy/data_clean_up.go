package strategy

import (
	"context"
	"fmt"

	"position-monitor/config"
	"position-monitor/internal/repository"
	"position-monitor/pkg/logger"

	jsoniter "github.com/json-iterator/go"
)

type DataCleanUpResult struct {
	Table         string `json:"table"`
	RetentionDays int    `json:"retention_days"`
	Total         int64  `json:"total"`
	Error         string `json:"error,omitempty"`
}

type DataCleanUpStrategy struct {
	cfg          config.CleanUp
	log          *logger.Logger
	positionRepo repository.PositionRepository
}

func NewDataCleanUpStrategy(cfg config.CleanUp, log *logger.Logger, positionRepo repository.PositionRepository) *DataCleanUpStrategy {
	return &DataCleanUpStrategy{
		cfg:          cfg,
		log:          log,
		positionRepo: positionRepo,
	}
}

func (s *DataCleanUpStrategy) Execute(ctx context.Context, run JobRun) (JobResult, error) {
	if s.cfg.RetentionDays <= 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "retention disabled"}, nil
	}

	s.log.InfoContext(ctx, "Starting data clean up",
		logger.Uint64Field("run", run.ID),
		logger.IntField("retention_days", s.cfg.RetentionDays))

	result := DataCleanUpResult{Table: "position_logs", RetentionDays: s.cfg.RetentionDays}
	total, err := s.positionRepo.DeleteLogsOlderThan(ctx, s.cfg.RetentionDays)
	result.Total = total
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to delete position logs", logger.ErrorField(err))
		result.Error = err.Error()
	}

	res, mErr := jsoniter.Marshal(result)
	if mErr != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output message: %v", mErr)}, fmt.Errorf("failed to marshal output message: %w", mErr)
	}
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: string(res)}, err
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(res)}, nil
}

func (s *DataCleanUpStrategy) GetType() JobType {
	return JobTypeDataCleanUp
}
