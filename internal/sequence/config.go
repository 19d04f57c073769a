package sequence

import (
	"fmt"
	"math"
)

// Config tunes the sorter. The yaml tags match the "sorting" section of the
// settings file.
type Config struct {
	// MinTransitionScore is the lowest immediate score the greedy search
	// will accept.
	MinTransitionScore float64 `yaml:"min_transition_score" json:"min_transition_score"`
	// MaxConsecutiveStatic caps consecutive fallback placements before a
	// directional clip is forced.
	MaxConsecutiveStatic int `yaml:"max_consecutive_static" json:"max_consecutive_static"`
	// TransitionLookahead is the search depth of findBestNext.
	TransitionLookahead  int  `yaml:"transition_lookahead" json:"transition_lookahead"`
	RandomizeEqualScores bool `yaml:"randomize_equal_scores" json:"randomize_equal_scores"`
	// AllowReverseTransitions is reserved and not consulted.
	AllowReverseTransitions bool `yaml:"allow_reverse_transitions" json:"allow_reverse_transitions"`
	// PreferIntensityMatch is reserved and not consulted.
	PreferIntensityMatch bool `yaml:"prefer_intensity_match" json:"prefer_intensity_match"`
	OptimizeIterations   int  `yaml:"optimize_iterations" json:"optimize_iterations"`
}

func DefaultConfig() Config {
	return Config{
		MinTransitionScore:   0.5,
		MaxConsecutiveStatic: 2,
		TransitionLookahead:  3,
		RandomizeEqualScores: true,
		PreferIntensityMatch: true,
		OptimizeIterations:   100,
	}
}

// Validate rejects settings the sorter cannot run with.
func (c Config) Validate() error {
	if math.IsNaN(c.MinTransitionScore) || math.IsInf(c.MinTransitionScore, 0) {
		return fmt.Errorf("min_transition_score must be finite")
	}
	if c.MaxConsecutiveStatic < 0 {
		return fmt.Errorf("max_consecutive_static must be >= 0, got %d", c.MaxConsecutiveStatic)
	}
	if c.TransitionLookahead < 0 {
		return fmt.Errorf("transition_lookahead must be >= 0, got %d", c.TransitionLookahead)
	}
	if c.OptimizeIterations < 0 {
		return fmt.Errorf("optimize_iterations must be >= 0, got %d", c.OptimizeIterations)
	}
	return nil
}
