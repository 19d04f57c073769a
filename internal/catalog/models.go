package catalog

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/clipflow/internal/sequence"
)

var ErrJobNotFound = errors.New("job not found")

const (
	JobTypeAnalyze = "analyze"
	JobTypeSort    = "sort"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is a queued analyze or sort run against one manifest file.
type Job struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	ManifestPath string    `json:"manifest_path"`
	Options      string    `json:"options,omitempty"` // JSON, AnalyzeOptions or SortOptions
	Progress     int       `json:"progress"`
	Error        string    `json:"error,omitempty"`
	Sequence     []string  `json:"sequence,omitempty"`
	Score        *float64  `json:"score,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AnalyzeOptions drive an analyze job.
type AnalyzeOptions struct {
	Folder    string `json:"folder"`
	SpeedMode string `json:"speed_mode,omitempty"`
	Window    int    `json:"window_frames,omitempty"`
	Workers   int    `json:"workers,omitempty"`
}

// SortOptions drive a sort job. A nil Sorting uses the service defaults and
// a nil Seed draws a random one.
type SortOptions struct {
	Sorting   *sequence.Config `json:"sorting,omitempty"`
	Seed      *uint64          `json:"seed,omitempty"`
	OutputDir string           `json:"output_dir,omitempty"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".avi": true,
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}
