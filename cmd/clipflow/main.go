package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heimdex/clipflow/internal/catalog"
	"github.com/heimdex/clipflow/internal/config"
	"github.com/heimdex/clipflow/internal/extractor"
	"github.com/heimdex/clipflow/internal/logging"
)

var (
	settingsFile string
	logLevel     string
)

// app is filled in by the root command before any subcommand runs.
var app struct {
	env      *config.EnvConfig
	settings *config.Settings
	logger   *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "clipflow",
	Short:         "clipflow - motion-guided clip sequencing",
	Long:          "Analyzes the motion at the start and end of video clips and orders them so each cut flows into the next.",
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		env.SetLogLevel(logLevel)

		path := settingsFile
		if path == "" {
			path = env.SettingsPath()
		}
		settings, err := config.LoadSettings(path)
		if err != nil {
			return err
		}

		app.env = env
		app.settings = settings
		app.logger = logging.NewLoggerTo(os.Stderr, env.LogLevel())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "config", "", "settings file (default: <data dir>/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(serveCmd)
}

func serviceConfig(s *config.Settings) catalog.ServiceConfig {
	return catalog.ServiceConfig{
		Sorting:   s.Sorting,
		SpeedMode: s.Analysis.SpeedMode,
		Window:    s.Analysis.WindowFrames,
		Workers:   s.Analysis.Workers,
	}
}

func newExtractor() (*extractor.SubprocessExtractor, error) {
	cfg := extractor.DefaultConfig(app.env.DataDir(), logging.WithComponent(app.logger, "extractor"))
	cfg.Command = app.env.Extractor()
	cfg.ArtifactsDir = app.env.ArtifactsDir()
	cfg.Timeout = app.settings.Analysis.ExtractorTimeout
	return extractor.New(cfg)
}
