// Package config provides configuration management for clipflow.
// Process configuration is loaded from environment variables with sensible
// defaults; sorting and analysis tuning lives in a YAML settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// Default values
	DefaultPort      = 8787
	DefaultLogLevel  = "info"
	DefaultDataDir   = ".clipflow"
	DefaultExtractor = "clipflow-motion"

	// Environment variable names
	EnvPort      = "CLIPFLOW_PORT"
	EnvLogLevel  = "CLIPFLOW_LOG_LEVEL"
	EnvDataDir   = "CLIPFLOW_DATA_DIR"
	EnvExtractor = "CLIPFLOW_EXTRACTOR"
	EnvSettings  = "CLIPFLOW_SETTINGS"

	// Database filename
	DBFilename = "clipflow.db"

	SettingsFilename = "settings.yaml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ArtifactsDir() string
	Extractor() string
	SettingsPath() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	extractor    string
	settingsPath string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.extractor = os.Getenv(EnvExtractor)
	cfg.settingsPath = os.Getenv(EnvSettings)

	return cfg, nil
}

// SetLogLevel overrides the log level, typically from a command-line flag.
func (c *EnvConfig) SetLogLevel(level string) {
	if level != "" {
		c.logLevel = level
	}
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ArtifactsDir holds extractor output while a clip is analysed.
func (c *EnvConfig) ArtifactsDir() string {
	return filepath.Join(c.dataDir, "artifacts")
}

// Extractor returns the motion extractor executable.
func (c *EnvConfig) Extractor() string {
	if c.extractor != "" {
		return c.extractor
	}
	return DefaultExtractor
}

// SettingsPath returns the YAML settings file location.
func (c *EnvConfig) SettingsPath() string {
	if c.settingsPath != "" {
		return c.settingsPath
	}
	return filepath.Join(c.dataDir, SettingsFilename)
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
