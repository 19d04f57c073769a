package export

const (
	FormatEDL   = "edl"
	FormatFiles = "files"
)

// ExportRequest asks for the result of a finished sort job to be written out.
type ExportRequest struct {
	JobID     string  `json:"job_id"`
	Format    string  `json:"format"`
	Title     string  `json:"title"`
	FrameRate float64 `json:"frame_rate"`
	OutputDir string  `json:"output_dir"`
}

// EDLClip is one event of an edit decision list. The whole clip is used, so
// the source range is always [0, Frames).
type EDLClip struct {
	Name      string
	MediaPath string
	Frames    int
	// Note is written as a comment under the event, usually the score of
	// the transition into this clip.
	Note string
}

type ExportResponse struct {
	Status     string   `json:"status"`
	Format     string   `json:"format"`
	OutputPath string   `json:"output_path"`
	ClipCount  int      `json:"clip_count"`
	Skipped    []string `json:"skipped"`
}
