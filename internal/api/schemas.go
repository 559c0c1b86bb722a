package api

import (
	"encoding/json"
	"time"

	"github.com/komposer/komposer/internal/plan"
	"github.com/komposer/komposer/internal/store"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State       string       `json:"state"`
	LastError   string       `json:"last_error,omitempty"`
	PlansCount  int          `json:"plans_count"`
	FilesCount  int          `json:"files_count"`
	JobsRunning int          `json:"jobs_running"`
	ActiveJob   *JobResponse `json:"active_job,omitempty"`
}

// BuildPlanRequest carries a raw komposition document plus the optional
// planning overrides. The document is parsed and validated server-side.
type BuildPlanRequest struct {
	Komposition     json.RawMessage `json:"komposition"`
	RenderStartBeat *int            `json:"render_start_beat,omitempty"`
	RenderEndBeat   *int            `json:"render_end_beat,omitempty"`
	OutputWidth     int             `json:"output_width,omitempty"`
	OutputHeight    int             `json:"output_height,omitempty"`
	BPMOverride     float64         `json:"bpm_override,omitempty"`
}

type PlanListResponse struct {
	Plans []PlanSummaryResponse `json:"plans"`
}

type PlanSummaryResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	BPM        float64 `json:"bpm"`
	TotalBeats int     `json:"total_beats"`
	CreatedAt  string  `json:"created_at"`
}

type ValidateRequest struct {
	BPMs []float64 `json:"bpms"`
}

type RenderResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	PlanID     string `json:"plan_id,omitempty"`
	Progress   int    `json:"progress"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type RegisterFileRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type FileResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	MediaType string `json:"media_type,omitempty"`
	CreatedAt string `json:"created_at"`
}

type FilesResponse struct {
	Files []FileResponse `json:"files"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SummaryToResponse(s *plan.PlanSummary) PlanSummaryResponse {
	return PlanSummaryResponse{
		ID:         s.ID,
		Title:      s.Title,
		BPM:        s.BPM,
		TotalBeats: s.TotalBeats,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *plan.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Type:       j.Type,
		Status:     j.Status,
		PlanID:     j.PlanID,
		Progress:   j.Progress,
		OutputPath: j.OutputPath,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}

func FileToResponse(f *store.MediaFile) FileResponse {
	return FileResponse{
		ID:        f.ID,
		Name:      f.Name,
		Path:      f.Path,
		MediaType: f.MediaType,
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
	}
}
