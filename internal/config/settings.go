package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heimdex/clipflow/internal/motion"
	"github.com/heimdex/clipflow/internal/sequence"
)

// Settings is the YAML settings file.
type Settings struct {
	Sorting  sequence.Config `yaml:"sorting"`
	Analysis AnalysisConfig  `yaml:"analysis"`
}

type AnalysisConfig struct {
	SpeedMode        motion.SpeedMode `yaml:"speed_mode"`
	WindowFrames     int              `yaml:"window_frames"`
	Workers          int              `yaml:"workers"`
	ExtractorTimeout time.Duration    `yaml:"extractor_timeout"`
}

func DefaultSettings() *Settings {
	return &Settings{
		Sorting: sequence.DefaultConfig(),
		Analysis: AnalysisConfig{
			SpeedMode:        motion.SpeedBalanced,
			WindowFrames:     motion.DefaultWindow,
			ExtractorTimeout: 10 * time.Minute,
		},
	}
}

// LoadSettings reads the settings file at path over the defaults. A missing
// file yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if err := s.Sorting.Validate(); err != nil {
		return err
	}
	if s.Sorting.TransitionLookahead < 1 {
		return fmt.Errorf("transition_lookahead must be >= 1, got %d", s.Sorting.TransitionLookahead)
	}
	if s.Sorting.MinTransitionScore < 0 || s.Sorting.MinTransitionScore > 1 {
		return fmt.Errorf("min_transition_score must be in [0, 1], got %g", s.Sorting.MinTransitionScore)
	}
	if _, err := motion.ParamsFor(s.Analysis.SpeedMode); err != nil {
		return err
	}
	if s.Analysis.WindowFrames < 1 {
		return fmt.Errorf("window_frames must be >= 1, got %d", s.Analysis.WindowFrames)
	}
	if s.Analysis.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Analysis.Workers)
	}
	if s.Analysis.ExtractorTimeout <= 0 {
		return fmt.Errorf("extractor_timeout must be positive")
	}
	return nil
}
