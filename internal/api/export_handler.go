package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/clipflow/internal/catalog"
	"github.com/heimdex/clipflow/internal/export"
	"github.com/heimdex/clipflow/internal/manifest"
)

const defaultExportTitle = "clipflow_sequence"

// exportHandler writes the sequence of a completed sort job either as an EDL
// file or as sequence_NNNN files in the output directory.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		req.Format = strings.ToLower(chi.URLParam(r, "format"))
		if req.Format != export.FormatEDL && req.Format != export.FormatFiles {
			WriteError(w, http.StatusBadRequest, "format must be edl or files", "BAD_REQUEST")
			return
		}
		if req.JobID == "" {
			WriteError(w, http.StatusBadRequest, "job_id is required", "BAD_REQUEST")
			return
		}
		if err := export.ValidateOutputDir(req.OutputDir, req.Format == export.FormatFiles); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.GetJob(r.Context(), req.JobID)
		if errors.Is(err, catalog.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
			return
		}
		if job.Type != catalog.JobTypeSort || job.Status != catalog.JobStatusCompleted || len(job.Sequence) == 0 {
			WriteError(w, http.StatusConflict, "job has no sorted sequence", "NOT_READY")
			return
		}

		report, err := cfg.Service.GetReport(r.Context(), job.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get report", "INTERNAL_ERROR")
			return
		}

		if req.Format == export.FormatFiles {
			res, err := export.Materialize(r.Context(), job.Sequence, req.OutputDir, cfg.Logger)
			if err == nil {
				err = export.WriteReportFile(filepath.Join(req.OutputDir, catalog.ReportFileName), report)
			}
			if err != nil {
				cfg.Logger.Error("export failed", "job_id", job.ID, "error", err)
				WriteError(w, http.StatusInternalServerError, "failed to write sequence files", "INTERNAL_ERROR")
				return
			}
			WriteJSON(w, http.StatusOK, export.ExportResponse{
				Status:     "ok",
				Format:     export.FormatFiles,
				OutputPath: req.OutputDir,
				ClipCount:  len(res.Placed),
				Skipped:    nonNil(res.Skipped),
			})
			return
		}

		m, err := manifest.Load(job.ManifestPath)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "MALFORMED_MANIFEST")
			return
		}

		var clips []export.EDLClip
		skipped := []string{}
		for _, c := range catalog.BuildEDL(m, job.Sequence, report) {
			if _, err := os.Stat(c.MediaPath); err != nil {
				skipped = append(skipped, c.MediaPath)
				continue
			}
			clips = append(clips, c)
		}
		if len(clips) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "no clips of the sequence exist on disk", "UNRESOLVABLE_CLIPS")
			return
		}

		title := export.SanitizeName(req.Title, 120)
		if title == "" {
			title = defaultExportTitle
		}
		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = 30.0
		}

		edl := export.GenerateEDL(clips, title, frameRate)
		outputPath := filepath.Join(req.OutputDir, title+".edl")
		if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, export.ExportResponse{
			Status:     "ok",
			Format:     export.FormatEDL,
			OutputPath: outputPath,
			ClipCount:  len(clips),
			Skipped:    skipped,
		})
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
