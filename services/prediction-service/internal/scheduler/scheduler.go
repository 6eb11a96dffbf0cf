package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/metrics"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
	"github.com/stitts-dev/pick-engine/shared/types"
)

const (
	JobRecalculateElo = "recalculate_elo"
	JobGeneratePicks  = "generate_picks"
	JobGradePicks     = "grade_picks"
)

// Jobs is the work the scheduler drives
type Jobs interface {
	SupportedSports() []types.Sport
	RecalculateElo(ctx context.Context, sport types.Sport) ([]types.EloRating, error)
	PublishPicks(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, error)
	SettlePending(ctx context.Context, sport types.Sport) ([]types.GradedPick, error)
}

// Settings holds the cron expressions and source guard tuning
type Settings struct {
	EloSchedule      string
	PickSchedule     string
	GradeSchedule    string
	JobTimeout       time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		EloSchedule:      cfg.EloSchedule,
		PickSchedule:     cfg.PickSchedule,
		GradeSchedule:    cfg.GradeSchedule,
		JobTimeout:       5 * time.Minute,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
		BreakerTimeout:   cfg.ExternalAPITimeout * 6,
	}
}

// Scheduler runs Elo replays, pick publishing and grading on cron schedules
type Scheduler struct {
	jobs     Jobs
	settings Settings
	logger   *logrus.Logger
	cron     *cron.Cron
	breaker  *SourceBreaker
	metrics  *metrics.Recorder
	clock    func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc

	mu        sync.RWMutex
	registry  map[string]JobInfo
	funcs     map[string]func(context.Context) error
	isRunning bool
}

// JobInfo represents information about a scheduled job
type JobInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   string        `json:"schedule"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	Status     string        `json:"status"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Duration   time.Duration `json:"duration"`

	entryID cron.EntryID
}

func NewScheduler(settings Settings, jobs Jobs, recorder *metrics.Recorder, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	names := make([]string, 0)
	for _, sport := range jobs.SupportedSports() {
		names = append(names, string(sport))
	}
	if settings.JobTimeout <= 0 {
		settings.JobTimeout = 5 * time.Minute
	}

	return &Scheduler{
		jobs:     jobs,
		settings: settings,
		logger:   logger,
		cron:     cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger)), cron.WithLocation(time.UTC)),
		breaker:  NewSourceBreaker(names, settings.BreakerThreshold, settings.BreakerTimeout, logger),
		metrics:  recorder,
		clock:    func() time.Time { return time.Now().UTC() },
		ctx:      ctx,
		cancel:   cancel,
		registry: make(map[string]JobInfo),
		funcs:    make(map[string]func(context.Context) error),
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	s.logger.WithField("component", "scheduler").Info("Starting scheduler")

	if err := s.scheduleJobs(); err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	return nil
}

func (s *Scheduler) scheduleJobs() error {
	if err := s.addJob(JobRecalculateElo, s.settings.EloSchedule, "Elo replay", s.recalculateElo); err != nil {
		return err
	}
	if err := s.addJob(JobGeneratePicks, s.settings.PickSchedule, "Pick publishing", s.generatePicks); err != nil {
		return err
	}
	if err := s.addJob(JobGradePicks, s.settings.GradeSchedule, "Pick grading", s.gradePicks); err != nil {
		return err
	}
	return nil
}

// addJob must be called with mu held
func (s *Scheduler) addJob(id, schedule, name string, fn func(context.Context) error) error {
	if schedule == "" {
		s.logger.WithField("job_id", id).Info("No schedule configured, job disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		_ = s.runJob(id, name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", id, err)
	}

	s.funcs[id] = fn
	s.registry[id] = JobInfo{
		ID:       id,
		Name:     name,
		Schedule: schedule,
		NextRun:  s.cron.Entry(entryID).Next,
		Status:   "scheduled",
		entryID:  entryID,
	}

	s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"job_id":    id,
		"job_name":  name,
		"schedule":  schedule,
	}).Info("Scheduled job added")
	return nil
}

// runJob executes a job with panic recovery and bookkeeping
func (s *Scheduler) runJob(id, name string) (err error) {
	s.mu.Lock()
	job, exists := s.registry[id]
	fn := s.funcs[id]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("job %s not found", id)
	}
	if job.Status == "running" {
		s.mu.Unlock()
		return fmt.Errorf("job %s is already running", id)
	}
	job.Status = "running"
	job.LastRun = s.clock()
	job.RunCount++
	s.registry[id] = job
	s.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{
		"component": "scheduler",
		"job_id":    id,
		"job_name":  name,
		"run_count": job.RunCount,
	})
	logger.Info("Starting scheduled job")
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Job panicked")
			err = fmt.Errorf("panic: %v", r)
		}
		duration := time.Since(startTime)
		s.metrics.JobRun(id, err)
		if err != nil {
			logger.WithError(err).WithField("duration", duration).Error("Job failed")
			s.updateJobStatus(id, "failed", err.Error(), duration)
			return
		}
		logger.WithField("duration", duration).Info("Job completed successfully")
		s.updateJobStatus(id, "completed", "", duration)
	}()

	return fn(s.ctx)
}

func (s *Scheduler) updateJobStatus(id, status, errorMsg string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.registry[id]
	if !exists {
		return
	}

	job.Status = status
	job.Duration = duration
	if errorMsg != "" {
		job.ErrorCount++
		job.LastError = errorMsg
	}
	job.NextRun = s.cron.Entry(job.entryID).Next
	s.registry[id] = job
}

// forEachSport runs fn for every supported sport behind that sport's breaker. One sport
// failing does not stop the rest.
func (s *Scheduler) forEachSport(ctx context.Context, job string, fn func(context.Context, types.Sport) error) error {
	var errs []error
	for _, sport := range s.jobs.SupportedSports() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.breaker.Execute(string(sport), func() error {
			sportCtx, cancel := context.WithTimeout(ctx, s.settings.JobTimeout)
			defer cancel()
			return fn(sportCtx, sport)
		})
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"component": "scheduler",
				"job_id":    job,
				"sport":     sport,
			}).Warn("Sport run failed")
			errs = append(errs, fmt.Errorf("%s: %w", sport, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) recalculateElo(ctx context.Context) error {
	return s.forEachSport(ctx, JobRecalculateElo, func(ctx context.Context, sport types.Sport) error {
		_, err := s.jobs.RecalculateElo(ctx, sport)
		return err
	})
}

func (s *Scheduler) generatePicks(ctx context.Context) error {
	today := s.clock()
	return s.forEachSport(ctx, JobGeneratePicks, func(ctx context.Context, sport types.Sport) error {
		_, err := s.jobs.PublishPicks(ctx, sport, today)
		return err
	})
}

func (s *Scheduler) gradePicks(ctx context.Context) error {
	return s.forEachSport(ctx, JobGradePicks, func(ctx context.Context, sport types.Sport) error {
		_, err := s.jobs.SettlePending(ctx, sport)
		return err
	})
}

// GetJobs returns a copy of every scheduled job's bookkeeping, ordered by ID
func (s *Scheduler) GetJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.registry))
	for _, job := range s.registry {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// GetStatus summarizes the scheduler for health checks
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	running := s.isRunning
	s.mu.RUnlock()

	return map[string]interface{}{
		"is_running": running,
		"jobs":       s.GetJobs(),
		"breakers":   s.breaker.States(),
	}
}

// TriggerJob runs a job now, outside its schedule
func (s *Scheduler) TriggerJob(id string) error {
	s.mu.RLock()
	job, exists := s.registry[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("job %s not found", id)
	}

	s.logger.WithField("job_id", id).Info("Manually triggering job")
	go func() {
		_ = s.runJob(id, job.Name)
	}()
	return nil
}

// Stop waits for running jobs to finish, up to five seconds, then cancels them
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.logger.WithField("component", "scheduler").Info("Stopping scheduler")
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.logger.WithField("component", "scheduler").Info("Cron scheduler stopped gracefully")
	case <-time.After(5 * time.Second):
		s.logger.WithField("component", "scheduler").Warn("Cron scheduler stop timed out")
	}
	s.cancel()
}
