package motion

import (
	"fmt"
	"math"
)

// DefaultWindow is the number of frames analysed at each end of a clip.
const DefaultWindow = 30

// Vector is a single motion vector (x, y) reported by the extractor.
type Vector [2]float64

// Frame holds the motion vectors of one decoded frame.
type Frame []Vector

// SpeedMode trades analysis detail for speed.
type SpeedMode string

const (
	SpeedFast     SpeedMode = "fast"
	SpeedBalanced SpeedMode = "balanced"
	SpeedPrecise  SpeedMode = "precise"
)

// Params control segment analysis.
type Params struct {
	SampleRate      int     // keep every Nth frame
	VectorThreshold float64 // vectors at or below this on both axes are noise
}

var speedParams = map[SpeedMode]Params{
	SpeedFast:     {SampleRate: 5, VectorThreshold: 0.5},
	SpeedBalanced: {SampleRate: 2, VectorThreshold: 0.3},
	SpeedPrecise:  {SampleRate: 1, VectorThreshold: 0.2},
}

// ParamsFor returns the analysis parameters of a speed mode.
func ParamsFor(mode SpeedMode) (Params, error) {
	p, ok := speedParams[mode]
	if !ok {
		return Params{}, fmt.Errorf("unknown speed mode %q", mode)
	}
	return p, nil
}

// Sample keeps every SampleRate-th frame starting at the first.
func (p Params) Sample(frames []Frame) []Frame {
	if p.SampleRate <= 1 {
		return frames
	}
	out := make([]Frame, 0, len(frames)/p.SampleRate+1)
	for i, f := range frames {
		if i%p.SampleRate == 0 {
			out = append(out, f)
		}
	}
	return out
}

// AnalyzeSegment summarises frames[start:end] into a dominant direction.
func (p Params) AnalyzeSegment(frames []Frame, start, end int) Summary {
	if start < 0 {
		start = 0
	}
	if end > len(frames) {
		end = len(frames)
	}
	if len(frames) == 0 || end <= start {
		return StaticSummary(1)
	}

	var sumX, sumY float64
	n := 0
	for _, frame := range frames[start:end] {
		for _, v := range frame {
			if math.Abs(v[0]) > p.VectorThreshold || math.Abs(v[1]) > p.VectorThreshold {
				sumX += v[0]
				sumY += v[1]
				n++
			}
		}
	}
	if n == 0 {
		return StaticSummary(1)
	}

	avgX := sumX / float64(n)
	avgY := sumY / float64(n)
	intensity := math.Hypot(avgX, avgY)
	confidence := math.Min(1, intensity/2)

	if intensity < p.VectorThreshold {
		return NewSummary(Static, NoDirection, intensity, confidence)
	}

	primary := FromAngle(math.Atan2(avgY, avgX))
	return NewSummary(primary, secondaryFor(primary, avgX, avgY), intensity, confidence)
}

// secondaryFor picks the adjacent cardinal direction. Vertical components use
// image coordinates here: negative y is up.
func secondaryFor(primary Direction, avgX, avgY float64) Direction {
	horizontal := West
	if avgX > 0 {
		horizontal = East
	}
	vertical := South
	if avgY < 0 {
		vertical = North
	}

	switch primary {
	case North, South:
		return horizontal
	case East, West:
		return vertical
	}
	if math.Abs(avgX) > math.Abs(avgY) {
		return horizontal
	}
	return vertical
}

// AnalyzeClip samples frames and summarises the first and last window frames.
func (p Params) AnalyzeClip(path string, frames []Frame, window int) *Clip {
	if window <= 0 {
		window = DefaultWindow
	}
	sampled := p.Sample(frames)
	if len(sampled) == 0 {
		return &Clip{
			Path:  path,
			Start: StaticSummary(0),
			End:   StaticSummary(0),
		}
	}

	n := len(sampled)
	return &Clip{
		Path:       path,
		Start:      p.AnalyzeSegment(sampled, 0, min(window, n)),
		End:        p.AnalyzeSegment(sampled, max(0, n-window), n),
		FrameCount: n,
	}
}
