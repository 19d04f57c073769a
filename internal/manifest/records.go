package manifest

import (
	"fmt"
	"time"

	"github.com/heimdex/clipflow/internal/motion"
	"github.com/heimdex/clipflow/internal/scoring"
)

// scoreTolerance absorbs float rounding in persisted scores.
const scoreTolerance = 1e-9

// fileRecord is the on-disk layout of a manifest.
type fileRecord struct {
	Metadata    *metadataRecord    `json:"metadata"`
	Clips       []ClipRecord       `json:"clips"`
	Transitions []TransitionRecord `json:"transitions"`
}

type metadataRecord struct {
	Created          time.Time      `json:"created"`
	LastModified     time.Time      `json:"last_modified"`
	ClipCount        int            `json:"clip_count"`
	Version          string         `json:"version"`
	AnalysisSettings map[string]any `json:"analysis_settings"`
}

// SummaryRecord is the persisted form of a motion.Summary. An absent
// secondary direction is written as null.
type SummaryRecord struct {
	PrimaryDirection   string  `json:"primary_direction"`
	SecondaryDirection *string `json:"secondary_direction"`
	Intensity          float64 `json:"intensity"`
	Confidence         float64 `json:"confidence"`
}

// ClipRecord is the persisted form of a motion.Clip.
type ClipRecord struct {
	ClipPath    string         `json:"clip_path"`
	StartMotion *SummaryRecord `json:"start_motion"`
	EndMotion   *SummaryRecord `json:"end_motion"`
	FrameCount  int            `json:"frame_count"`
}

// TransitionRecord is the persisted form of a scoring.Transition.
type TransitionRecord struct {
	FromClip       string  `json:"from_clip"`
	ToClip         string  `json:"to_clip"`
	Score          float64 `json:"score"`
	DirectionMatch bool    `json:"direction_match"`
	IntensityMatch bool    `json:"intensity_match"`
	Notes          string  `json:"notes"`
}

func summaryToRecord(s motion.Summary) *SummaryRecord {
	rec := &SummaryRecord{
		PrimaryDirection: s.Primary.String(),
		Intensity:        s.Intensity,
		Confidence:       s.Confidence,
	}
	if s.HasSecondary() {
		sec := s.Secondary.String()
		rec.SecondaryDirection = &sec
	}
	return rec
}

func (r *SummaryRecord) toSummary() (motion.Summary, error) {
	if r == nil {
		return motion.Summary{}, fmt.Errorf("motion summary is missing")
	}
	primary, err := motion.ParseDirection(r.PrimaryDirection)
	if err != nil {
		return motion.Summary{}, err
	}
	secondary := motion.NoDirection
	if r.SecondaryDirection != nil && *r.SecondaryDirection != "" {
		if secondary, err = motion.ParseDirection(*r.SecondaryDirection); err != nil {
			return motion.Summary{}, err
		}
	}
	if r.Intensity < 0 {
		return motion.Summary{}, fmt.Errorf("negative intensity %v", r.Intensity)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return motion.Summary{}, fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	return motion.Summary{
		Primary:    primary,
		Secondary:  secondary,
		Intensity:  r.Intensity,
		Confidence: r.Confidence,
	}, nil
}

// NewClipRecord converts a clip to its persisted form.
func NewClipRecord(c *motion.Clip) ClipRecord {
	return ClipRecord{
		ClipPath:    c.Path,
		StartMotion: summaryToRecord(c.Start),
		EndMotion:   summaryToRecord(c.End),
		FrameCount:  c.FrameCount,
	}
}

// Clip validates the record and converts it back to a motion.Clip.
func (r ClipRecord) Clip() (*motion.Clip, error) {
	if r.ClipPath == "" {
		return nil, fmt.Errorf("clip_path is empty")
	}
	if r.FrameCount < 0 {
		return nil, fmt.Errorf("clip %s: negative frame_count", r.ClipPath)
	}
	start, err := r.StartMotion.toSummary()
	if err != nil {
		return nil, fmt.Errorf("clip %s start_motion: %w", r.ClipPath, err)
	}
	end, err := r.EndMotion.toSummary()
	if err != nil {
		return nil, fmt.Errorf("clip %s end_motion: %w", r.ClipPath, err)
	}
	return &motion.Clip{
		Path:       r.ClipPath,
		Start:      start,
		End:        end,
		FrameCount: r.FrameCount,
	}, nil
}

// NewTransitionRecord converts a transition to its persisted form.
func NewTransitionRecord(t scoring.Transition) TransitionRecord {
	return TransitionRecord{
		FromClip:       t.From,
		ToClip:         t.To,
		Score:          t.Score,
		DirectionMatch: t.DirectionMatch,
		IntensityMatch: t.IntensityMatch,
		Notes:          t.Notes,
	}
}

// Transition validates the record and converts it back.
func (r TransitionRecord) Transition() (scoring.Transition, error) {
	if r.FromClip == "" || r.ToClip == "" {
		return scoring.Transition{}, fmt.Errorf("transition is missing from_clip or to_clip")
	}
	if r.Score < 0 || r.Score > 1+scoreTolerance {
		return scoring.Transition{}, fmt.Errorf("transition %s -> %s: score %v outside [0,1]", r.FromClip, r.ToClip, r.Score)
	}
	return scoring.Transition{
		From:           r.FromClip,
		To:             r.ToClip,
		Score:          r.Score,
		DirectionMatch: r.DirectionMatch,
		IntensityMatch: r.IntensityMatch,
		Notes:          r.Notes,
	}, nil
}
