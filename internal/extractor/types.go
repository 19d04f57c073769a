// Package extractor runs an external motion-vector extractor as a subprocess
// and turns its JSON output into per-clip motion records.
package extractor

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/heimdex/clipflow/internal/motion"
)

// ErrInvalidOutput marks extractor output that cannot be used.
var ErrInvalidOutput = errors.New("invalid extractor output")

// Info is what the extractor reports about itself for `--probe`.
type Info struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	SchemaVersion string          `json:"schema_version"`
	GPU           GPUInfo         `json:"gpu"`
	Codecs        map[string]bool `json:"codecs,omitempty"`

	ProbedAt time.Time `json:"-"`
}

type GPUInfo struct {
	Available bool   `json:"available"`
	Device    string `json:"device,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunResult is the outcome of one extractor subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last bytes of stderr
	Duration   time.Duration `json:"duration"`
}

func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Output is the file written to --out. Either Frames (raw per-frame motion
// vectors, summarised here) or Clip (an already summarised clip record) must
// be present.
type Output struct {
	SchemaVersion string          `json:"schema_version"`
	FrameRate     float64         `json:"frame_rate,omitempty"`
	Frames        []motion.Frame  `json:"frames,omitempty"`
	Clip          json.RawMessage `json:"clip,omitempty"`
}
