package api

import (
	"encoding/json"
	"time"

	"github.com/heimdex/clipflow/internal/catalog"
	"github.com/heimdex/clipflow/internal/scoring"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State       string                   `json:"state"`
	LastError   string                   `json:"last_error,omitempty"`
	JobsRunning int                      `json:"jobs_running"`
	JobsPending int                      `json:"jobs_pending"`
	ActiveJob   *JobResponse             `json:"active_job,omitempty"`
	Extractor   *ExtractorStatusResponse `json:"extractor,omitempty"`
}

type ExtractorStatusResponse struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version,omitempty"`
	GPU           bool   `json:"gpu"`
	LastProbeAt   string `json:"last_probe_at,omitempty"`
}

type AnalyzeRequest struct {
	Folder       string `json:"folder"`
	ManifestPath string `json:"manifest_path,omitempty"`
	SpeedMode    string `json:"speed_mode,omitempty"`
	WindowFrames int    `json:"window_frames,omitempty"`
	Workers      int    `json:"workers,omitempty"`
}

// SortRequest carries sorting overrides as raw JSON so that omitted keys
// keep the service defaults.
type SortRequest struct {
	ManifestPath string          `json:"manifest_path"`
	Sorting      json.RawMessage `json:"sorting,omitempty"`
	Seed         *uint64         `json:"seed,omitempty"`
	OutputDir    string          `json:"output_dir,omitempty"`
}

type JobResponse struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	ManifestPath string   `json:"manifest_path"`
	Progress     int      `json:"progress"`
	Error        string   `json:"error,omitempty"`
	Sequence     []string `json:"sequence,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ReportResponse struct {
	JobID       string               `json:"job_id"`
	Transitions []scoring.Transition `json:"transitions"`
}

type RunnerResponse struct {
	Running bool `json:"running"`
	Paused  bool `json:"paused"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		Type:         j.Type,
		Status:       j.Status,
		ManifestPath: j.ManifestPath,
		Progress:     j.Progress,
		Error:        j.Error,
		Sequence:     j.Sequence,
		Score:        j.Score,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    j.UpdatedAt.Format(time.RFC3339),
	}
}
