package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/komposer/komposer/internal/export"
	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/plan"
	"github.com/komposer/komposer/internal/store"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/plans", buildPlanHandler(cfg))
		r.Get("/plans", listPlansHandler(cfg))
		r.Get("/plans/{id}", getPlanHandler(cfg))
		r.Post("/plans/{id}/validate", validatePlanHandler(cfg))
		r.Get("/plans/{id}/edl", edlHandler(cfg))
		r.Post("/plans/{id}/render", renderHandler(cfg))
		r.Get("/plans/{id}/output", outputHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Post("/media/files", registerFileHandler(cfg))
		r.Get("/media/files", listFilesHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: "0.1.0",
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		plansCount, _ := cfg.Planner.CountPlans(ctx)
		files, _ := cfg.Files.List(ctx)
		jobs, _ := cfg.Repository.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			if j.Status == plan.JobStatusRunning {
				state = "rendering"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == plan.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:       state,
			LastError:   lastError,
			PlansCount:  plansCount,
			FilesCount:  len(files),
			JobsRunning: jobsRunning,
			ActiveJob:   activeJob,
		})
	}
}

func buildPlanHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BuildPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.Komposition) == 0 {
			WriteError(w, http.StatusBadRequest, "komposition is required", "BAD_REQUEST")
			return
		}

		doc, err := komposition.Parse(req.Komposition)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_KOMPOSITION")
			return
		}

		p, err := cfg.Planner.BuildPlan(r.Context(), plan.Request{
			Komposition:     doc,
			RenderStartBeat: req.RenderStartBeat,
			RenderEndBeat:   req.RenderEndBeat,
			OutputWidth:     req.OutputWidth,
			OutputHeight:    req.OutputHeight,
			CustomBPM:       req.BPMOverride,
		})
		if err != nil {
			status, code := planErrorStatus(err)
			WriteError(w, status, err.Error(), code)
			return
		}

		WriteJSON(w, http.StatusCreated, p)
	}
}

// planErrorStatus maps planning failures to HTTP statuses: input problems
// are claims about the document, probe failures about the media on disk.
func planErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, plan.ErrSourceNotFound):
		return http.StatusUnprocessableEntity, "SOURCE_NOT_FOUND"
	case errors.Is(err, plan.ErrProbeFailed):
		return http.StatusUnprocessableEntity, "PROBE_FAILED"
	case errors.Is(err, plan.ErrUnresolvedReference), errors.Is(err, plan.ErrBadArity):
		return http.StatusBadRequest, "INVALID_EFFECTS_TREE"
	default:
		return http.StatusBadRequest, "BAD_REQUEST"
	}
}

func listPlansHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		summaries, err := cfg.Planner.ListPlans(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list plans", "INTERNAL_ERROR")
			return
		}

		resp := PlanListResponse{Plans: make([]PlanSummaryResponse, len(summaries))}
		for i, s := range summaries {
			resp.Plans[i] = SummaryToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getPlanHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Planner.GetPlan(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "plan not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func validatePlanHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.BPMs) == 0 {
			WriteError(w, http.StatusBadRequest, "bpms is required", "BAD_REQUEST")
			return
		}

		results, err := cfg.Planner.Validate(r.Context(), chi.URLParam(r, "id"), req.BPMs)
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, results)
	}
}

func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Planner.GetPlan(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "plan not found", "NOT_FOUND")
			return
		}

		fps := 30.0
		if v := r.URL.Query().Get("fps"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed <= 0 {
				WriteError(w, http.StatusBadRequest, "invalid fps", "BAD_REQUEST")
				return
			}
			fps = parsed
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+p.ID+`.edl"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(export.FromPlan(p, fps)))
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Planner.EnqueueRender(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusAccepted, RenderResponse{JobID: job.ID})
	}
}

func outputHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planID := chi.URLParam(r, "id")

		jobs, err := cfg.Repository.ListJobs(r.Context(), 100)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		// Jobs come back newest first; the first completed render wins.
		for _, j := range jobs {
			if j.PlanID == planID && j.Status == plan.JobStatusCompleted && j.OutputPath != "" {
				http.ServeFile(w, r, j.OutputPath)
				return
			}
		}

		WriteError(w, http.StatusNotFound, "no completed render for this plan", "NOT_FOUND")
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Repository.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func registerFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Name == "" || req.Path == "" {
			WriteError(w, http.StatusBadRequest, "name and path are required", "BAD_REQUEST")
			return
		}

		file := &store.MediaFile{Name: req.Name, Path: req.Path}
		if cfg.Engine != nil {
			probe, err := cfg.Engine.Probe(r.Context(), req.Path)
			if err != nil {
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "PROBE_FAILED")
				return
			}
			file.MediaType = string(probe.MediaType)
		}

		if err := cfg.Files.Register(r.Context(), file); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, FileToResponse(file))
	}
}

func listFilesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := cfg.Files.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list files", "INTERNAL_ERROR")
			return
		}

		resp := FilesResponse{Files: make([]FileResponse, len(files))}
		for i, f := range files {
			resp.Files[i] = FileToResponse(f)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
