package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/media"
	"github.com/komposer/komposer/internal/store"
	"github.com/komposer/komposer/internal/timing"
)

// Request is one planning request: the parsed document plus optional
// overrides. Nil beat pointers default to [0, metadata.totalBeats); a zero
// CustomBPM keeps the document's tempo.
type Request struct {
	Komposition     *komposition.Komposition
	RenderStartBeat *int
	RenderEndBeat   *int
	OutputWidth     int
	OutputHeight    int
	CustomBPM       float64
}

// PlannerService builds, stores, validates, and queues plans.
type PlannerService interface {
	BuildPlan(ctx context.Context, req Request) (*BuildPlan, error)
	GetPlan(ctx context.Context, id string) (*BuildPlan, error)
	ListPlans(ctx context.Context, limit int) ([]*PlanSummary, error)
	Validate(ctx context.Context, planID string, candidateBPMs []float64) (map[float64]*ValidationResult, error)
	EnqueueRender(ctx context.Context, planID string) (*Job, error)
	CountPlans(ctx context.Context) (int, error)
}

type Service struct {
	repo              Repository
	files             store.FileStore
	engine            media.Engine
	maxSegmentSeconds float64
	defaultWidth      int
	defaultHeight     int
	logger            *slog.Logger
}

func NewService(repo Repository, files store.FileStore, engine media.Engine,
	maxSegmentSeconds float64, defaultWidth, defaultHeight int, logger *slog.Logger) *Service {
	if defaultWidth <= 0 || defaultHeight <= 0 {
		defaultWidth, defaultHeight = 1920, 1080
	}
	return &Service{
		repo:              repo,
		files:             files,
		engine:            engine,
		maxSegmentSeconds: maxSegmentSeconds,
		defaultWidth:      defaultWidth,
		defaultHeight:     defaultHeight,
		logger:            logger,
	}
}

// BuildPlan runs the whole planning flow: resolve sources, plan snippet
// extractions, resolve the effects tree, assemble and persist. Construction
// errors abort the call; only degenerate-stretch segments degrade softly.
func (s *Service) BuildPlan(ctx context.Context, req Request) (*BuildPlan, error) {
	doc := req.Komposition
	if doc == nil {
		return nil, fmt.Errorf("planning request has no komposition")
	}

	bpm := doc.Metadata.BPM
	if req.CustomBPM != 0 {
		bpm = req.CustomBPM
	}

	renderRange := RenderRange{StartBeat: 0, EndBeat: doc.Metadata.TotalBeats}
	if req.RenderStartBeat != nil {
		renderRange.StartBeat = *req.RenderStartBeat
	}
	if req.RenderEndBeat != nil {
		renderRange.EndBeat = *req.RenderEndBeat
	}

	tm, err := timing.NewTiming(bpm, doc.Metadata.BeatsPerMeasure, renderRange.StartBeat, renderRange.EndBeat)
	if err != nil {
		return nil, fmt.Errorf("render range: %w", err)
	}

	width, height := req.OutputWidth, req.OutputHeight
	if width <= 0 || height <= 0 {
		width, height = s.defaultWidth, s.defaultHeight
	}

	// The catalog's memoization is scoped to this one request.
	catalog := NewCatalog(s.files, s.engine, s.logger)

	extractions, skipped, err := planSnippets(ctx, doc.Segments, renderRange, tm, catalog, s.logger)
	if err != nil {
		return nil, err
	}

	operations, err := resolveEffects(doc.EffectsTree, extractions, tm)
	if err != nil {
		return nil, err
	}

	var skippedIDs []string
	for _, sk := range skipped {
		skippedIDs = append(skippedIDs, sk.SegmentID)
	}

	p := Assemble(AssembleInput{
		ID:              NewID(),
		Title:           doc.Metadata.Title,
		Timing:          tm,
		RenderRange:     renderRange,
		TotalBeats:      doc.Metadata.TotalBeats,
		OutputWidth:     width,
		OutputHeight:    height,
		Sources:         catalog.Resolved(),
		Extractions:     extractions,
		Operations:      operations,
		SkippedSegments: skippedIDs,
	})

	if err := s.repo.CreatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("plan built",
			"plan_id", p.ID,
			"title", p.Title,
			"bpm", tm.BPM,
			"extractions", len(extractions),
			"effects", len(operations),
			"skipped", len(skipped),
		)
	}
	return p, nil
}

func (s *Service) GetPlan(ctx context.Context, id string) (*BuildPlan, error) {
	return s.repo.GetPlan(ctx, id)
}

func (s *Service) ListPlans(ctx context.Context, limit int) ([]*PlanSummary, error) {
	return s.repo.ListPlans(ctx, limit)
}

func (s *Service) CountPlans(ctx context.Context) (int, error) {
	plans, err := s.repo.ListPlans(ctx, 10000)
	if err != nil {
		return 0, err
	}
	return len(plans), nil
}

// Validate rederives a stored plan's timing at each candidate tempo.
func (s *Service) Validate(ctx context.Context, planID string, candidateBPMs []float64) (map[float64]*ValidationResult, error) {
	p, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("plan not found")
	}
	return ValidatePlan(p, candidateBPMs, s.maxSegmentSeconds), nil
}

// EnqueueRender creates a pending render job for the runner to pick up.
func (s *Service) EnqueueRender(ctx context.Context, planID string) (*Job, error) {
	p, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("plan not found")
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeRender,
		Status:    JobStatusPending,
		PlanID:    planID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("render job created", "job_id", job.ID, "plan_id", planID)
	}
	return job, nil
}
