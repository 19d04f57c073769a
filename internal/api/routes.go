package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/clipflow/internal/catalog"
	"github.com/heimdex/clipflow/internal/config"
	"github.com/heimdex/clipflow/internal/manifest"
	"github.com/heimdex/clipflow/internal/playback"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/jobs/analyze", submitAnalyzeHandler(cfg))
		r.Post("/jobs/sort", submitSortHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/jobs/{id}/report", getReportHandler(cfg))
		r.Get("/jobs/{id}/clips/{position}", clipHandler(cfg))
		r.Get("/manifests/stats", manifestStatsHandler(cfg))
		r.Post("/export/{format}", exportHandler(cfg))
		r.Post("/runner/pause", runnerHandler(cfg, true))
		r.Post("/runner/resume", runnerHandler(cfg, false))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		jobs, _ := cfg.Repository.ListJobs(ctx, 20)

		state := "idle"
		var activeJob *JobResponse
		resp := StatusResponse{}
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			switch j.Status {
			case catalog.JobStatusRunning:
				state = "sorting"
				if j.Type == catalog.JobTypeAnalyze {
					state = "analyzing"
				}
				jr := JobToResponse(j)
				activeJob = &jr
				resp.JobsRunning++
			case catalog.JobStatusPending:
				resp.JobsPending++
			case catalog.JobStatusFailed:
				if lastError == "" {
					lastError = j.Error
				}
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}
		resp.State = state
		resp.LastError = lastError
		resp.ActiveJob = activeJob

		if cfg.Probe != nil {
			info, err := cfg.Probe.Get(ctx)
			if err == nil && info != nil {
				resp.Extractor = &ExtractorStatusResponse{
					Name:          info.Name,
					Version:       info.Version,
					SchemaVersion: info.SchemaVersion,
					GPU:           info.GPU.Available,
					LastProbeAt:   info.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func submitAnalyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Folder == "" {
			WriteError(w, http.StatusBadRequest, "folder is required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.SubmitAnalyze(r.Context(), req.ManifestPath, catalog.AnalyzeOptions{
			Folder:    req.Folder,
			SpeedMode: req.SpeedMode,
			Window:    req.WindowFrames,
			Workers:   req.Workers,
		})
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		if cfg.Runner != nil {
			cfg.Runner.Notify()
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}

func submitSortHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SortRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ManifestPath == "" {
			WriteError(w, http.StatusBadRequest, "manifest_path is required", "BAD_REQUEST")
			return
		}

		opts := catalog.SortOptions{Seed: req.Seed, OutputDir: req.OutputDir}
		if len(req.Sorting) > 0 {
			sorting := cfg.Service.Config().Sorting
			if err := json.Unmarshal(req.Sorting, &sorting); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid sorting options", "BAD_REQUEST")
				return
			}
			opts.Sorting = &sorting
		}

		job, err := cfg.Service.SubmitSort(r.Context(), req.ManifestPath, opts)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		if cfg.Runner != nil {
			cfg.Runner.Notify()
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		jobs, err := cfg.Service.ListJobs(r.Context(), limit)
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
		job, err := cfg.Service.GetJob(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, catalog.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func getReportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		report, err := cfg.Service.GetReport(r.Context(), id)
		if errors.Is(err, catalog.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get report", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, ReportResponse{JobID: id, Transitions: report})
	}
}

// clipHandler streams the clip at a position of a sort job's sequence. Only
// paths recorded in the job's result are ever served.
func clipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Playback == nil {
			WriteError(w, http.StatusServiceUnavailable, "playback not available", "UNAVAILABLE")
			return
		}
		job, err := cfg.Service.GetJob(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, catalog.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
			return
		}

		path, err := playback.ClipAt(job.Sequence, chi.URLParam(r, "position"))
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		if err := cfg.Playback.ServeClip(w, r, path); err != nil {
			cfg.Logger.Error("playback error", "job_id", job.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "playback error", "INTERNAL_ERROR")
		}
	}
}

func manifestStatsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		m, err := manifest.Load(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			WriteError(w, http.StatusNotFound, "manifest not found", "NOT_FOUND")
			return
		case errors.Is(err, manifest.ErrMalformed):
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "MALFORMED_MANIFEST")
			return
		case err != nil:
			WriteError(w, http.StatusInternalServerError, "failed to read manifest", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, m.Statistics())
	}
}

func runnerHandler(cfg ServerConfig, pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "job runner not available", "UNAVAILABLE")
			return
		}
		if pause {
			cfg.Runner.Pause()
		} else {
			cfg.Runner.Resume()
		}
		WriteJSON(w, http.StatusOK, RunnerResponse{Running: cfg.Runner.IsRunning(), Paused: cfg.Runner.IsPaused()})
	}
}
