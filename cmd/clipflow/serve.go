package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/clipflow/internal/api"
	"github.com/heimdex/clipflow/internal/catalog"
	"github.com/heimdex/clipflow/internal/config"
	"github.com/heimdex/clipflow/internal/db"
	"github.com/heimdex/clipflow/internal/extractor"
	"github.com/heimdex/clipflow/internal/logging"
	"github.com/heimdex/clipflow/internal/playback"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job runner and the local HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	startTime := time.Now()
	cfg := app.env
	logger := app.logger

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger.Info("starting clipflow", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	if n, err := repo.FailRunningJobs(ctx, "interrupted by restart"); err != nil {
		logger.Warn("failed to recover interrupted jobs", "error", err)
	} else if n > 0 {
		logger.Info("marked interrupted jobs failed", "count", n)
	}

	deviceID, err := ensureConfigValue(ctx, repo, "device_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := ensureConfigValue(ctx, repo, api.AuthTokenKey, 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Printf("  clipflow %s\n", config.Version)
	fmt.Printf("  API URL:    http://127.0.0.1:%d\n", cfg.Port())
	fmt.Printf("  Auth Token: %s\n", authToken)
	fmt.Printf("  Device ID:  %s...\n", deviceID[:16])
	fmt.Println()

	var ext extractor.Extractor
	var probe *extractor.CachedProbe
	if se, err := newExtractor(); err != nil {
		logger.Warn("motion extractor unavailable, analyze jobs will fail", "error", err)
	} else {
		ext = se
		probe = extractor.NewCachedProbe(se, logger)

		probeCtx, probeCancel := context.WithTimeout(ctx, 30*time.Second)
		if info, err := probe.Refresh(probeCtx); err != nil {
			logger.Warn("initial extractor probe failed", "error", err)
		} else {
			logger.Info("motion extractor detected", "name", info.Name, "version", info.Version, "gpu", info.GPU.Available)
		}
		probeCancel()
	}

	svc := catalog.NewService(repo, ext, serviceConfig(app.settings), logging.WithComponent(logger, "catalog"))
	runner := catalog.NewRunner(svc, repo, logging.WithComponent(logger, "runner"))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go runner.Start(runCtx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Service:    svc,
		Repository: repo,
		Runner:     runner,
		Probe:      probe,
		Playback:   playback.NewServer(logging.WithComponent(logger, "playback")),
		Logger:     logging.WithComponent(logger, "api"),
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// ensureConfigValue returns the stored value of key, generating and storing
// a random hex value of n bytes on first use.
func ensureConfigValue(ctx context.Context, repo catalog.Repository, key string, n int) (string, error) {
	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	value := hex.EncodeToString(b)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
