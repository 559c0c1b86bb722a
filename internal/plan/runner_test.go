package plan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubRenderer struct {
	outputPath string
	err        error
	rendered   []string
}

func (r *stubRenderer) Render(ctx context.Context, p *BuildPlan, progress func(int)) (string, error) {
	r.rendered = append(r.rendered, p.ID)
	if progress != nil {
		progress(50)
		progress(100)
	}
	return r.outputPath, r.err
}

func TestRunner_ProcessRenderJob(t *testing.T) {
	svc, repo, _ := setupTestService(t)
	ctx := context.Background()

	p, err := svc.BuildPlan(ctx, Request{Komposition: parseSample(t)})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	job, err := svc.EnqueueRender(ctx, p.ID)
	if err != nil {
		t.Fatalf("EnqueueRender: %v", err)
	}

	renderer := &stubRenderer{outputPath: "/work/final.mp4"}
	runner := NewRunner(repo, renderer, time.Second, 0, svc.logger)

	runner.processNextJob(ctx)

	if len(renderer.rendered) != 1 || renderer.rendered[0] != p.ID {
		t.Fatalf("rendered plans = %v, want [%s]", renderer.rendered, p.ID)
	}

	stored, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != JobStatusCompleted {
		t.Errorf("job status = %q, want completed", stored.Status)
	}
	if stored.OutputPath != "/work/final.mp4" {
		t.Errorf("output path = %q, want /work/final.mp4", stored.OutputPath)
	}
	if stored.Progress != 100 {
		t.Errorf("progress = %d, want 100", stored.Progress)
	}
}

func TestRunner_RenderFailure(t *testing.T) {
	svc, repo, _ := setupTestService(t)
	ctx := context.Background()

	p, err := svc.BuildPlan(ctx, Request{Komposition: parseSample(t)})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	job, err := svc.EnqueueRender(ctx, p.ID)
	if err != nil {
		t.Fatalf("EnqueueRender: %v", err)
	}

	renderer := &stubRenderer{err: errors.New("encoder exploded")}
	runner := NewRunner(repo, renderer, time.Second, 0, svc.logger)

	runner.processNextJob(ctx)

	stored, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != JobStatusFailed {
		t.Errorf("job status = %q, want failed", stored.Status)
	}
	if stored.Error != "encoder exploded" {
		t.Errorf("job error = %q, want encoder exploded", stored.Error)
	}
}

// hangingRenderer blocks until its context is cancelled, like a wedged
// engine invocation would.
type hangingRenderer struct{}

func (hangingRenderer) Render(ctx context.Context, p *BuildPlan, progress func(int)) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRunner_RenderTimeout(t *testing.T) {
	svc, repo, _ := setupTestService(t)
	ctx := context.Background()

	p, err := svc.BuildPlan(ctx, Request{Komposition: parseSample(t)})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	job, err := svc.EnqueueRender(ctx, p.ID)
	if err != nil {
		t.Fatalf("EnqueueRender: %v", err)
	}

	runner := NewRunner(repo, hangingRenderer{}, time.Second, 10*time.Millisecond, svc.logger)
	runner.processNextJob(ctx)

	stored, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != JobStatusFailed {
		t.Errorf("job status = %q, want failed", stored.Status)
	}
	if !strings.Contains(stored.Error, context.DeadlineExceeded.Error()) {
		t.Errorf("job error = %q, want deadline exceeded", stored.Error)
	}
}

func TestRunner_MissingPlan(t *testing.T) {
	svc, repo, _ := setupTestService(t)
	ctx := context.Background()

	now := time.Now()
	job := &Job{
		ID: NewID(), Type: JobTypeRender, Status: JobStatusPending,
		PlanID: "no-such-plan", CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	runner := NewRunner(repo, &stubRenderer{}, time.Second, 0, svc.logger)
	runner.processNextJob(ctx)

	stored, _ := repo.GetJob(ctx, job.ID)
	if stored.Status != JobStatusFailed {
		t.Errorf("job status = %q, want failed", stored.Status)
	}
}

func TestRunner_PauseResume(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	runner := NewRunner(repo, &stubRenderer{}, time.Second, 0, svc.logger)
	if runner.IsPaused() {
		t.Error("new runner must not start paused")
	}

	runner.Pause()
	if !runner.IsPaused() {
		t.Error("runner not paused after Pause")
	}

	runner.Resume()
	if runner.IsPaused() {
		t.Error("runner still paused after Resume")
	}
}
