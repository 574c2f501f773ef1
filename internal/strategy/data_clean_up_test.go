package strategy_test

import (
	"context"
	"testing"

	"position-monitor/config"
	"position-monitor/internal/repository"
	"position-monitor/internal/strategy"
	"position-monitor/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogCleaner struct {
	repository.PositionRepository
	days    int
	deleted int64
	err     error
}

func (f *fakeLogCleaner) DeleteLogsOlderThan(_ context.Context, retentionDays int) (int64, error) {
	f.days = retentionDays
	return f.deleted, f.err
}

func TestDataCleanUpStrategy_Execute(t *testing.T) {
	repo := &fakeLogCleaner{deleted: 12}
	s := strategy.NewDataCleanUpStrategy(config.CleanUp{RetentionDays: 30}, logger.NewNop(), repo)

	result, err := s.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_SUCCESS), result.ExitCode)
	assert.Equal(t, 30, repo.days)
	assert.JSONEq(t, `{"table":"position_logs","retention_days":30,"total":12}`, result.Output)

	repo.err = errBoom
	result, err = s.Execute(context.Background(), strategy.JobRun{ID: 2})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_FAILED), result.ExitCode)
}

func TestDataCleanUpStrategy_Disabled(t *testing.T) {
	repo := &fakeLogCleaner{}
	s := strategy.NewDataCleanUpStrategy(config.CleanUp{RetentionDays: 0}, logger.NewNop(), repo)

	result, err := s.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_SKIPPED), result.ExitCode)
	assert.Zero(t, repo.days)
}
