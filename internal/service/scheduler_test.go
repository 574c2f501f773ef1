package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"position-monitor/config"
	"position-monitor/internal/strategy"
	"position-monitor/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	jobType strategy.JobType
	hold    chan struct{}
	started chan struct{}

	mu      sync.Mutex
	runs    []uint64
	running int
	maxSeen int
	ctxErrs []error
	budgets []time.Duration
}

func newFakeJob(jobType strategy.JobType) *fakeJob {
	return &fakeJob{jobType: jobType, started: make(chan struct{}, 100)}
}

func (f *fakeJob) GetType() strategy.JobType { return f.jobType }

func (f *fakeJob) Execute(ctx context.Context, run strategy.JobRun) (strategy.JobResult, error) {
	f.mu.Lock()
	f.running++
	if f.running > f.maxSeen {
		f.maxSeen = f.running
	}
	f.runs = append(f.runs, run.ID)
	if deadline, ok := ctx.Deadline(); ok {
		f.budgets = append(f.budgets, time.Until(deadline))
	}
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.hold != nil {
		<-f.hold
	} else {
		time.Sleep(2 * time.Millisecond)
	}

	f.mu.Lock()
	f.running--
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()
	return strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_SUCCESS, Output: "{}"}, nil
}

func (f *fakeJob) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func schedulerConfig() *config.Config {
	return &config.Config{
		Monitor: config.Monitor{Interval: 5 * time.Millisecond, CycleTimeout: time.Second},
		CleanUp: config.CleanUp{Cron: "@daily", RetentionDays: 30, Timeout: 10 * time.Minute},
	}
}

func TestScheduler_RunsCyclesUntilStopped(t *testing.T) {
	job := newFakeJob(strategy.JobTypePositionMonitor)
	s := NewSchedulerService(schedulerConfig(), logger.NewNop(), job, newFakeJob(strategy.JobTypeDataCleanUp))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return job.runCount() >= 3 }, time.Second, time.Millisecond)
	cancel()
	s.Stop()

	stopped := job.runCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, job.runCount())

	job.mu.Lock()
	defer job.mu.Unlock()
	for i := 1; i < len(job.runs); i++ {
		assert.Greater(t, job.runs[i], job.runs[i-1])
	}
	assert.Equal(t, 1, job.maxSeen)
}

func TestScheduler_InFlightCycleFinishesAfterStop(t *testing.T) {
	job := newFakeJob(strategy.JobTypePositionMonitor)
	job.hold = make(chan struct{})
	s := NewSchedulerService(schedulerConfig(), logger.NewNop(), job)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	<-job.started
	cancel()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(job.hold)
	<-stopped

	job.mu.Lock()
	defer job.mu.Unlock()
	assert.Len(t, job.runs, 1)
	assert.NoError(t, job.ctxErrs[0])
}

func TestScheduler_ManualRunDoesNotOverlap(t *testing.T) {
	job := newFakeJob(strategy.JobTypePositionMonitor)
	s := NewSchedulerService(schedulerConfig(), logger.NewNop(), job)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RunMonitorNow(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, job.runCount())
	assert.Equal(t, 1, job.maxSeen)
}

func TestScheduler_UnknownJobAndBadCron(t *testing.T) {
	s := NewSchedulerService(schedulerConfig(), logger.NewNop(), newFakeJob(strategy.JobTypePositionMonitor))
	result, err := s.RunJob(context.Background(), strategy.JobTypeDataCleanUp)
	assert.Error(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_FAILED), result.ExitCode)

	cfg := schedulerConfig()
	cfg.CleanUp.Cron = "every tuesday"
	s = NewSchedulerService(cfg, logger.NewNop(), newFakeJob(strategy.JobTypePositionMonitor), newFakeJob(strategy.JobTypeDataCleanUp))
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_MissingMonitorSchedulesNothing(t *testing.T) {
	s := NewSchedulerService(schedulerConfig(), logger.NewNop(), newFakeJob(strategy.JobTypeDataCleanUp))

	assert.Error(t, s.Start(context.Background()))
	assert.Empty(t, s.(*schedulerService).cron.Entries())
	s.Stop()
}

func TestScheduler_TimeoutPerJobType(t *testing.T) {
	monitor := newFakeJob(strategy.JobTypePositionMonitor)
	cleanUp := newFakeJob(strategy.JobTypeDataCleanUp)
	s := NewSchedulerService(schedulerConfig(), logger.NewNop(), monitor, cleanUp)

	_, err := s.RunMonitorNow(context.Background())
	require.NoError(t, err)
	_, err = s.RunJob(context.Background(), strategy.JobTypeDataCleanUp)
	require.NoError(t, err)

	require.Len(t, monitor.budgets, 1)
	assert.LessOrEqual(t, monitor.budgets[0], time.Second)
	require.Len(t, cleanUp.budgets, 1)
	assert.Greater(t, cleanUp.budgets[0], time.Minute)
}
