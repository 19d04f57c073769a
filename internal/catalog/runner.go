package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 2 * time.Second

// Runner polls for pending jobs and executes them one at a time.
type Runner struct {
	service      *Service
	repo         Repository
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
	wake         chan struct{}
}

func NewRunner(service *Service, repo Repository, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		service:      service,
		repo:         repo,
		logger:       logger,
		pollInterval: defaultPollInterval,
		wake:         make(chan struct{}, 1),
	}
}

// Start blocks until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	defer r.running.Store(false)

	r.logger.Info("job runner started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if !r.paused.Load() {
			for r.processNextJob(ctx) {
			}
		}
	}
}

// Notify wakes the runner without waiting for the next poll.
func (r *Runner) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
	r.Notify()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// processNextJob runs the oldest pending job and reports whether one ran.
func (r *Runner) processNextJob(ctx context.Context) bool {
	if ctx.Err() != nil || r.paused.Load() {
		return false
	}
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case JobTypeAnalyze:
		err = r.service.ExecuteAnalyze(ctx, job)
	case JobTypeSort:
		err = r.service.ExecuteSort(ctx, job)
	default:
		r.logger.Warn("unknown job type", "job_id", job.ID, "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
		return true
	}
	if err != nil {
		r.logger.Error("job failed", "job_id", job.ID, "type", job.Type, "error", err)
	}
	return true
}

func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning || j.Status == JobStatusPending {
			count++
		}
	}
	return count
}
