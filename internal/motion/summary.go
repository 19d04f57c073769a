package motion

import "math"

// NoDirection marks an absent secondary direction.
const NoDirection Direction = ""

// Summary describes the apparent motion at one end of a clip. Intensity is a
// raw vector magnitude with no upper bound; Confidence is within [0,1].
type Summary struct {
	Primary    Direction
	Secondary  Direction
	Intensity  float64
	Confidence float64
}

// NewSummary builds a Summary, clamping intensity to >= 0 and confidence to [0,1].
func NewSummary(primary, secondary Direction, intensity, confidence float64) Summary {
	if intensity < 0 || math.IsNaN(intensity) {
		intensity = 0
	}
	if math.IsNaN(confidence) {
		confidence = 0
	}
	return Summary{
		Primary:    primary,
		Secondary:  secondary,
		Intensity:  intensity,
		Confidence: math.Max(0, math.Min(1, confidence)),
	}
}

// StaticSummary is a summary with no apparent motion.
func StaticSummary(confidence float64) Summary {
	return NewSummary(Static, NoDirection, 0, confidence)
}

func (s Summary) HasSecondary() bool {
	return s.Secondary != NoDirection
}

func (s Summary) IsStatic() bool {
	return s.Primary == Static
}

// Strength is the seed ranking used when choosing the first clip of a sequence.
func (s Summary) Strength() float64 {
	return s.Intensity * s.Confidence
}

// Clip is the per-clip motion record. Path is the clip's identity.
type Clip struct {
	Path       string
	Start      Summary
	End        Summary
	FrameCount int
}
