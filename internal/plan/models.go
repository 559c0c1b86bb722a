package plan

import (
	"time"

	"github.com/google/uuid"

	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/media"
	"github.com/komposer/komposer/internal/timing"
)

// RenderRange is the half-open beat window [StartBeat, EndBeat) a plan
// covers on the composition timeline.
type RenderRange struct {
	StartBeat int `json:"start_beat"`
	EndBeat   int `json:"end_beat"`
}

// Overlaps reports whether a segment beat range intersects the window.
// Boundaries are exclusive: a segment ending exactly at StartBeat or
// starting exactly at EndBeat is outside.
func (r RenderRange) Overlaps(startBeat, endBeat int) bool {
	return endBeat > r.StartBeat && startBeat < r.EndBeat
}

// Source is one resolved physical media asset referenced by a plan.
// Sources are immutable after resolution and may be shared across plans.
type Source struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Path            string          `json:"path"`
	MediaType       media.MediaType `json:"media_type"`
	DurationSeconds float64         `json:"duration_seconds"`
	Width           int             `json:"width,omitempty"`
	Height          int             `json:"height,omitempty"`
}

// SnippetExtraction is one concrete "pull this slice of that source and fit
// it into this time slot" instruction, one per in-range segment.
type SnippetExtraction struct {
	ID                    string                       `json:"id"`
	SegmentID             string                       `json:"segment_id"`
	SourceID              string                       `json:"source_id"`
	StartBeat             int                          `json:"start_beat"`
	EndBeat               int                          `json:"end_beat"`
	TargetStartSeconds    float64                      `json:"target_start_seconds"`
	TargetDurationSeconds float64                      `json:"target_duration_seconds"`
	OriginalStart         float64                      `json:"original_start"`
	OriginalDuration      float64                      `json:"original_duration"`
	Method                komposition.ExtractionMethod `json:"method"`
	StretchFactor         float64                      `json:"stretch_factor,omitempty"`
	OutputRef             string                       `json:"output_ref"`
}

// TransitionParams is a transition window already converted from beats to
// seconds at the plan's tempo.
type TransitionParams struct {
	DurationSeconds    float64 `json:"duration_seconds"`
	StartOffsetSeconds float64 `json:"start_offset_seconds,omitempty"`
	EndOffsetSeconds   float64 `json:"end_offset_seconds,omitempty"`
}

// EffectParams is the tagged variant of per-effect configuration carried by
// an operation; exactly the field matching the operation type is set.
type EffectParams struct {
	Transition *TransitionParams             `json:"transition,omitempty"`
	Resize     *komposition.ResizeConfig     `json:"resize,omitempty"`
	ColorGrade *komposition.ColorGradeConfig `json:"color_grade,omitempty"`
}

// EffectOperation consumes one or more upstream output refs and produces
// one named intermediate output.
type EffectOperation struct {
	ID             string                 `json:"id"`
	EffectID       string                 `json:"effect_id"`
	Type           komposition.EffectType `json:"type"`
	Params         EffectParams           `json:"params"`
	Inputs         []string               `json:"inputs"`
	OutputRef      string                 `json:"output_ref"`
	ExecutionOrder int                    `json:"execution_order"`
}

// BuildPlan is the immutable result of one planning request. Re-planning,
// for a different tempo or range, produces a new plan.
type BuildPlan struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Timing             timing.Timing       `json:"beat_timing"`
	RenderRange        RenderRange         `json:"render_range"`
	TotalBeats         int                 `json:"total_beats"`
	OutputWidth        int                 `json:"output_width"`
	OutputHeight       int                 `json:"output_height"`
	Sources            []Source            `json:"source_files"`
	SnippetExtractions []SnippetExtraction `json:"snippet_extractions"`
	EffectOperations   []EffectOperation   `json:"effect_operations"`
	ExecutionOrder     []string            `json:"execution_order"`
	EstimatedSeconds   float64             `json:"estimated_processing_time"`
	FinalOutputRef     string              `json:"final_output_ref"`
	SkippedSegments    []string            `json:"skipped_segments,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// PlanSummary is the listing row for stored plans.
type PlanSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	BPM        float64   `json:"bpm"`
	TotalBeats int       `json:"total_beats"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	JobTypeRender = "render"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is one queued unit of background work, currently only plan renders.
type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	PlanID     string    `json:"plan_id,omitempty"`
	Progress   int       `json:"progress"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewID returns a fresh plan or job id.
func NewID() string {
	return uuid.NewString()
}
