package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/clipflow/internal/manifest"
	"github.com/heimdex/clipflow/internal/motion"
)

const maxStderrBytes = 8 * 1024

// Extractor produces the raw motion output of a single clip. Callers turn it
// into a motion record with Output.Summarize.
type Extractor interface {
	Extract(ctx context.Context, clipPath string) (*Output, error)
	Probe(ctx context.Context) (*Info, error)
}

type Config struct {
	Command      string   // extractor binary, looked up on PATH
	Args         []string // inserted before --input
	ArtifactsDir string
	Timeout      time.Duration // per clip
	ProbeTimeout time.Duration
	Logger       *slog.Logger
	DebugPaths   bool // log full paths instead of sanitised ones
}

func DefaultConfig(dataDir string, logger *slog.Logger) Config {
	return Config{
		Command:      "clipflow-motion",
		ArtifactsDir: filepath.Join(dataDir, "artifacts"),
		Timeout:      10 * time.Minute,
		ProbeTimeout: 30 * time.Second,
		Logger:       logger,
	}
}

// SubprocessExtractor runs `<command> [args] --input <clip> --out <json>`.
type SubprocessExtractor struct {
	cfg     Config
	command string
}

func New(cfg Config) (*SubprocessExtractor, error) {
	command, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("cannot locate extractor %q: %w", cfg.Command, err)
	}
	if err := os.MkdirAll(cfg.ArtifactsDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create artifacts dir: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	cfg.Logger.Info("motion extractor initialised",
		"command", command,
		"artifacts_dir", cfg.ArtifactsDir,
	)
	return &SubprocessExtractor{cfg: cfg, command: command}, nil
}

// Extract runs the extractor on clipPath and returns its validated output.
func (e *SubprocessExtractor) Extract(ctx context.Context, clipPath string) (*Output, error) {
	outPath := filepath.Join(e.cfg.ArtifactsDir, uuid.NewString()+".json")
	defer os.Remove(outPath)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	result := e.exec(ctx, outPath, "--input", clipPath, "--out", outPath)
	if !result.IsSuccess() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extractor on %s: %w", e.safePath(clipPath), err)
		}
		return nil, fmt.Errorf("extractor exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	return ReadOutput(outPath)
}

// Probe runs `<command> --probe --out <json>`.
func (e *SubprocessExtractor) Probe(ctx context.Context) (*Info, error) {
	outPath := filepath.Join(e.cfg.ArtifactsDir, ".probe.json")

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
	defer cancel()

	result := e.exec(ctx, outPath, "--probe", "--out", outPath)
	if !result.IsSuccess() {
		return nil, fmt.Errorf("probe exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read probe output: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: probe: %v", ErrInvalidOutput, err)
	}
	info.ProbedAt = time.Now()

	e.cfg.Logger.Info("extractor probe complete",
		"name", info.Name,
		"version", info.Version,
		"gpu", info.GPU.Available,
	)
	return &info, nil
}

// ReadOutput parses and validates an extractor output file.
func ReadOutput(path string) (*Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read extractor output: %w", err)
	}
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if out.SchemaVersion == "" {
		return nil, fmt.Errorf("%w: missing schema_version", ErrInvalidOutput)
	}
	if out.Frames == nil && len(out.Clip) == 0 {
		return nil, fmt.Errorf("%w: neither frames nor clip present", ErrInvalidOutput)
	}
	return &out, nil
}

// Summarize builds the clip record. A pre-summarised clip is taken as is,
// apart from its path which always becomes clipPath.
func (o *Output) Summarize(clipPath string, params motion.Params, window int) (*motion.Clip, error) {
	if len(o.Clip) > 0 {
		c, err := manifest.DecodeClip(o.Clip)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		c.Path = clipPath
		return c, nil
	}
	return params.AnalyzeClip(clipPath, o.Frames, window), nil
}

func (e *SubprocessExtractor) exec(ctx context.Context, outPath string, args ...string) RunResult {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		e.cfg.Logger.Error("cannot create output dir", "error", err)
		return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
	}

	cmdArgs := append(append([]string{}, e.cfg.Args...), args...)
	cmd := exec.CommandContext(ctx, e.command, cmdArgs...)

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	e.cfg.Logger.Debug("executing extractor", "args", e.safeArgs(cmdArgs))

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if exitCode != 0 {
		e.cfg.Logger.Warn("extractor failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderr.String(), 512),
		)
	} else {
		e.cfg.Logger.Debug("extractor succeeded",
			"duration_ms", elapsed.Milliseconds(),
			"output", e.safePath(outPath),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderr.String(),
		Duration:   elapsed,
	}
}

func (e *SubprocessExtractor) safeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if filepath.IsAbs(a) {
			a = e.safePath(a)
		}
		out[i] = a
	}
	return out
}

func (e *SubprocessExtractor) safePath(path string) string {
	if e.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if rest, ok := strings.CutPrefix(path, home); ok {
		return "~" + rest
	}
	return filepath.Base(path)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
