package plan

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/komposer/komposer/internal/logging"
)

// Renderer executes a plan against the media engine and returns the final
// output path. Implemented by the execute package.
type Renderer interface {
	Render(ctx context.Context, p *BuildPlan, progress func(int)) (string, error)
}

// Runner polls the job queue and executes render jobs one at a time. Each
// render runs under renderTimeout so a wedged engine invocation fails the
// job instead of stalling the queue; a zero timeout disables the budget.
type Runner struct {
	repo          Repository
	renderer      Renderer
	logger        *slog.Logger
	pollInterval  time.Duration
	renderTimeout time.Duration
	running       atomic.Bool
	paused        atomic.Bool
}

func NewRunner(repo Repository, renderer Renderer, pollInterval, renderTimeout time.Duration, logger *slog.Logger) *Runner {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Runner{
		repo:          repo,
		renderer:      renderer,
		logger:        logger,
		pollInterval:  pollInterval,
		renderTimeout: renderTimeout,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case JobTypeRender:
		r.processRenderJob(ctx, job)
	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
}

func (r *Runner) processRenderJob(ctx context.Context, job *Job) {
	log := logging.WithJobID(r.logger, job.ID)

	if r.renderer == nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "renderer not configured")
		return
	}

	p, err := r.repo.GetPlan(ctx, job.PlanID)
	if err != nil || p == nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "plan not found")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	renderCtx := ctx
	if r.renderTimeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, r.renderTimeout)
		defer cancel()
	}

	outputPath, err := r.renderer.Render(renderCtx, p, func(progress int) {
		r.repo.UpdateJobProgress(ctx, job.ID, progress)
	})
	if err != nil {
		log.Error("render failed", "plan_id", p.ID, "error", err)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return
	}

	r.repo.UpdateJobOutput(ctx, job.ID, outputPath)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	log.Info("render job completed", "plan_id", p.ID, "output", outputPath)
}

// ActiveJobCount returns the number of currently running jobs.
func (r *Runner) ActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning {
			count++
		}
	}
	return count
}
