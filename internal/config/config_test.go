package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/clipflow/internal/motion"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvDataDir, "/tmp/clipflow-test")
	t.Setenv(EnvExtractor, "")
	t.Setenv(EnvSettings, "")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.DBPath() != filepath.Join("/tmp/clipflow-test", DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.Extractor() != DefaultExtractor {
		t.Errorf("Extractor() = %q, want %q", cfg.Extractor(), DefaultExtractor)
	}
	if cfg.SettingsPath() != filepath.Join("/tmp/clipflow-test", SettingsFilename) {
		t.Errorf("SettingsPath() = %q", cfg.SettingsPath())
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvExtractor, "/opt/bin/motion")
	t.Setenv(EnvSettings, "/etc/clipflow.yaml")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
	if cfg.Extractor() != "/opt/bin/motion" {
		t.Errorf("Extractor() = %q", cfg.Extractor())
	}
	if cfg.SettingsPath() != "/etc/clipflow.yaml" {
		t.Errorf("SettingsPath() = %q", cfg.SettingsPath())
	}

	cfg.SetLogLevel("")
	if cfg.LogLevel() != "debug" {
		t.Errorf("empty SetLogLevel changed level to %q", cfg.LogLevel())
	}
}

func TestNew_InvalidPort(t *testing.T) {
	for _, p := range []string{"abc", "0", "70000"} {
		t.Setenv(EnvPort, p)
		if _, err := New(); err == nil {
			t.Errorf("port %q: expected error", p)
		}
	}
}

func TestLoadSettings_MissingFileGivesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Sorting != DefaultSettings().Sorting {
		t.Errorf("sorting = %+v, want defaults", s.Sorting)
	}
	if s.Analysis.SpeedMode != motion.SpeedBalanced {
		t.Errorf("speed_mode = %q", s.Analysis.SpeedMode)
	}
}

func TestLoadSettings_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
sorting:
  min_transition_score: 0.6
  transition_lookahead: 2
analysis:
  speed_mode: fast
  extractor_timeout: 90s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Sorting.MinTransitionScore != 0.6 || s.Sorting.TransitionLookahead != 2 {
		t.Errorf("sorting = %+v", s.Sorting)
	}
	if s.Sorting.OptimizeIterations != 100 {
		t.Errorf("unset optimize_iterations = %d, want default 100", s.Sorting.OptimizeIterations)
	}
	if s.Analysis.SpeedMode != motion.SpeedFast {
		t.Errorf("speed_mode = %q", s.Analysis.SpeedMode)
	}
	if s.Analysis.ExtractorTimeout != 90*time.Second {
		t.Errorf("extractor_timeout = %v", s.Analysis.ExtractorTimeout)
	}
	if s.Analysis.WindowFrames != motion.DefaultWindow {
		t.Errorf("window_frames = %d", s.Analysis.WindowFrames)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "sorting: [unclosed"},
		{"zero lookahead", "sorting:\n  transition_lookahead: 0\n"},
		{"score above one", "sorting:\n  min_transition_score: 1.5\n"},
		{"negative iterations", "sorting:\n  optimize_iterations: -1\n"},
		{"unknown speed", "analysis:\n  speed_mode: warp\n"},
		{"zero window", "analysis:\n  window_frames: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadSettings(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
