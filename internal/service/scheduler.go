package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"position-monitor/config"
	"position-monitor/internal/strategy"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/metrics"
	"position-monitor/pkg/utils"

	"github.com/robfig/cron/v3"
)

type SchedulerService interface {
	// Start runs the first monitor cycle right away, then one per interval,
	// and schedules the audit log clean up. Cancelling ctx stops both after
	// the cycle in flight.
	Start(ctx context.Context) error
	Stop()
	RunMonitorNow(ctx context.Context) (strategy.JobResult, error)
	RunJob(ctx context.Context, jobType strategy.JobType) (strategy.JobResult, error)
}

type schedulerService struct {
	cfg        *config.Config
	log        *logger.Logger
	strategies map[strategy.JobType]strategy.JobExecutionStrategy
	runSeq     map[strategy.JobType]*atomic.Uint64
	cron       *cron.Cron

	// jobLocks keeps runs of the same job type from overlapping.
	jobLocks map[strategy.JobType]*sync.Mutex
	wg       sync.WaitGroup
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	strategies ...strategy.JobExecutionStrategy,
) SchedulerService {
	s := &schedulerService{
		cfg:        cfg,
		log:        log,
		strategies: make(map[strategy.JobType]strategy.JobExecutionStrategy, len(strategies)),
		runSeq:     make(map[strategy.JobType]*atomic.Uint64, len(strategies)),
		jobLocks:   make(map[strategy.JobType]*sync.Mutex, len(strategies)),
		cron:       cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
	}
	for _, st := range strategies {
		s.strategies[st.GetType()] = st
		s.runSeq[st.GetType()] = &atomic.Uint64{}
		s.jobLocks[st.GetType()] = &sync.Mutex{}
	}
	return s
}

func (s *schedulerService) Start(ctx context.Context) error {
	if _, ok := s.strategies[strategy.JobTypePositionMonitor]; !ok {
		return fmt.Errorf("no %s strategy registered", strategy.JobTypePositionMonitor)
	}

	if _, ok := s.strategies[strategy.JobTypeDataCleanUp]; ok && s.cfg.CleanUp.Cron != "" {
		_, err := s.cron.AddFunc(s.cfg.CleanUp.Cron, func() {
			if _, err := s.RunJob(ctx, strategy.JobTypeDataCleanUp); err != nil {
				s.log.ErrorContextWithAlert(ctx, "Data clean up failed", logger.ErrorField(err))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid clean up cron %q: %w", s.cfg.CleanUp.Cron, err)
		}
	}
	s.cron.Start()

	s.wg.Add(1)
	utils.GoSafe(func() {
		defer s.wg.Done()
		s.monitorLoop(ctx)
	})

	s.log.Info("Scheduler started",
		logger.DurationField("interval", s.cfg.Monitor.Interval),
		logger.StringField("clean_up_cron", s.cfg.CleanUp.Cron))
	return nil
}

func (s *schedulerService) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Monitor.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			s.log.Info("Received signal to stop position monitor")
			return
		}

		// Errors are already logged and counted per run.
		_, _ = s.RunMonitorNow(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("Received signal to stop position monitor")
			return
		case <-ticker.C:
		}
	}
}

func (s *schedulerService) RunMonitorNow(ctx context.Context) (strategy.JobResult, error) {
	return s.RunJob(ctx, strategy.JobTypePositionMonitor)
}

// RunJob executes one run of jobType synchronously. The run is detached from
// ctx cancellation and bounded by the job type's timeout.
func (s *schedulerService) RunJob(ctx context.Context, jobType strategy.JobType) (strategy.JobResult, error) {
	st, ok := s.strategies[jobType]
	if !ok {
		return strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_FAILED, Output: "job type not found"}, fmt.Errorf("job type %s not found", jobType)
	}

	lock := s.jobLocks[jobType]
	lock.Lock()
	defer lock.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.jobTimeout(jobType))
	defer cancel()

	run := strategy.JobRun{
		ID:        s.runSeq[jobType].Add(1),
		Type:      jobType,
		StartedAt: utils.TimeNow(),
	}

	result, err := st.Execute(runCtx, run)
	elapsed := time.Since(run.StartedAt)

	if jobType == strategy.JobTypePositionMonitor {
		metrics.CyclesTotal.WithLabelValues(result.ResultLabel()).Inc()
		metrics.CycleDuration.Observe(elapsed.Seconds())
	}

	if err != nil {
		s.log.ErrorContext(ctx, "Job run failed",
			logger.StringField("job_type", string(jobType)),
			logger.Uint64Field("run", run.ID),
			logger.DurationField("elapsed", elapsed),
			logger.ErrorField(err))
		return result, err
	}

	logFn := s.log.DebugContext
	if result.ExitCode != strategy.JOB_EXIT_CODE_SKIPPED {
		logFn = s.log.InfoContext
	}
	logFn(ctx, "Job run completed",
		logger.StringField("job_type", string(jobType)),
		logger.Uint64Field("run", run.ID),
		logger.StringField("result", result.ResultLabel()),
		logger.DurationField("elapsed", elapsed),
		logger.StringField("output", result.Output))
	return result, nil
}

func (s *schedulerService) jobTimeout(jobType strategy.JobType) time.Duration {
	if jobType == strategy.JobTypeDataCleanUp && s.cfg.CleanUp.Timeout > 0 {
		return s.cfg.CleanUp.Timeout
	}
	return s.cfg.Monitor.CycleTimeout
}

func (s *schedulerService) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}
