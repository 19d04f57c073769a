package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/clipflow/internal/export"
	"github.com/heimdex/clipflow/internal/extractor"
	"github.com/heimdex/clipflow/internal/logging"
	"github.com/heimdex/clipflow/internal/manifest"
	"github.com/heimdex/clipflow/internal/motion"
	"github.com/heimdex/clipflow/internal/scoring"
	"github.com/heimdex/clipflow/internal/sequence"
)

const (
	DefaultManifestName = "motion_manifest.json"
	ReportFileName      = "transition_report.txt"
)

// ServiceConfig holds the defaults applied when a job does not override them.
type ServiceConfig struct {
	Sorting   sequence.Config
	SpeedMode motion.SpeedMode
	Window    int
	Workers   int
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Sorting:   sequence.DefaultConfig(),
		SpeedMode: motion.SpeedBalanced,
		Window:    motion.DefaultWindow,
	}
}

type Service struct {
	repo   Repository
	ext    extractor.Extractor
	cfg    ServiceConfig
	logger *slog.Logger
}

// NewService wires the job service. repo may be nil for callers that only use
// AnalyzeFolder and SortManifest; ext may be nil when no analysis is run.
func NewService(repo Repository, ext extractor.Extractor, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, ext: ext, cfg: cfg, logger: logger}
}

// Config returns the defaults jobs fall back to.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// AnalyzeSummary reports what an analysis pass did.
type AnalyzeSummary struct {
	ManifestPath string   `json:"manifest_path"`
	Found        int      `json:"found"`
	Analyzed     int      `json:"analyzed"`
	Failed       []string `json:"failed,omitempty"`
	Clips        int      `json:"clips"`
	Transitions  int      `json:"transitions"`
}

// ProgressFunc receives the number of processed and total clips.
type ProgressFunc func(done, total int)

// AnalyzeFolder extracts motion for every video under folder, upserts the
// clips into the manifest at manifestPath, rescores all transitions and
// saves the manifest. Clips the extractor fails on are logged and skipped.
func (s *Service) AnalyzeFolder(ctx context.Context, manifestPath string, opts AnalyzeOptions, progress ProgressFunc) (*AnalyzeSummary, error) {
	if s.ext == nil {
		return nil, fmt.Errorf("motion extractor not configured")
	}
	mode := motion.SpeedMode(opts.SpeedMode)
	if mode == "" {
		mode = s.cfg.SpeedMode
	}
	params, err := motion.ParamsFor(mode)
	if err != nil {
		return nil, err
	}
	window := opts.Window
	if window <= 0 {
		window = s.cfg.Window
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = s.cfg.Workers
	}

	files, err := findVideos(opts.Folder)
	if err != nil {
		return nil, err
	}
	s.logger.Info("found video files", "folder", logging.SanitizePath(opts.Folder), "count", len(files))

	m, err := manifest.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	summary := &AnalyzeSummary{ManifestPath: manifestPath, Found: len(files)}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		clip, err := s.analyzeClip(ctx, path, params, window)
		if err != nil {
			s.logger.Warn("failed to analyze clip", "path", logging.SanitizePath(path), "error", err)
			summary.Failed = append(summary.Failed, path)
		} else {
			m.AddClip(clip)
			summary.Analyzed++
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	m.SetAnalysisSetting("speed_mode", string(mode))
	m.SetAnalysisSetting("sample_rate", params.SampleRate)
	m.SetAnalysisSetting("vector_threshold", params.VectorThreshold)
	m.SetAnalysisSetting("window_frames", window)

	if err := m.AnalyzeAllTransitionsParallel(ctx, workers); err != nil {
		return nil, err
	}
	if err := m.Save(manifestPath); err != nil {
		return nil, err
	}

	summary.Clips = m.Len()
	summary.Transitions = len(m.Transitions())
	s.logger.Info("analysis complete",
		"manifest", logging.SanitizePath(manifestPath),
		"analyzed", summary.Analyzed,
		"failed", len(summary.Failed),
		"transitions", summary.Transitions,
	)
	return summary, nil
}

func (s *Service) analyzeClip(ctx context.Context, path string, params motion.Params, window int) (*motion.Clip, error) {
	out, err := s.ext.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return out.Summarize(path, params, window)
}

// findVideos lists video files below folder in lexical order, skipping
// hidden directories.
func findVideos(folder string) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("folder does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", folder)
	}

	var files []string
	err = filepath.WalkDir(folder, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && p != folder && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && IsVideoFile(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// SortOutcome is the result of one sort.
type SortOutcome struct {
	Sequence     []string                  `json:"sequence"`
	Score        float64                   `json:"score"`
	Report       []scoring.Transition      `json:"report"`
	Seed         uint64                    `json:"seed"`
	Materialized *export.MaterializeResult `json:"materialized,omitempty"`
}

// SortManifest loads the manifest, sorts it and, when opts.OutputDir is set,
// materializes the sequence and its transition report there. The outcome is
// returned even when materialization reports per-clip errors.
func (s *Service) SortManifest(ctx context.Context, manifestPath string, opts SortOptions) (*SortOutcome, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	cfg := s.cfg.Sorting
	if opts.Sorting != nil {
		cfg = *opts.Sorting
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := rand.Uint64()
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	sorter := sequence.New(m, cfg, sequence.WithSeed(seed), sequence.WithLogger(s.logger))
	seq, err := sorter.SortContext(ctx)
	if err != nil {
		return nil, err
	}
	out := &SortOutcome{
		Sequence: seq,
		Score:    sorter.Score(),
		Report:   sorter.TransitionReport(),
		Seed:     seed,
	}
	s.logger.Info("manifest sorted",
		"manifest", logging.SanitizePath(manifestPath),
		"clips", len(seq),
		"score", out.Score,
		"seed", seed,
	)

	if opts.OutputDir == "" {
		return out, nil
	}
	if err := export.ValidateOutputDir(opts.OutputDir, true); err != nil {
		return out, err
	}
	res, matErr := export.Materialize(ctx, seq, opts.OutputDir, s.logger)
	out.Materialized = &res
	reportErr := export.WriteReportFile(filepath.Join(opts.OutputDir, ReportFileName), out.Report)
	return out, errors.Join(matErr, reportErr)
}

// BuildEDL turns a sorted sequence into EDL events. Event durations come from
// the manifest's frame counts scaled back by the analysis sample rate.
func BuildEDL(m *manifest.Manifest, seq []string, report []scoring.Transition) []export.EDLClip {
	sampleRate := 1
	switch v := m.Metadata().AnalysisSettings["sample_rate"].(type) {
	case int:
		sampleRate = v
	case float64:
		sampleRate = int(v)
	}
	sampleRate = max(sampleRate, 1)

	clips := make([]export.EDLClip, 0, len(seq))
	for i, path := range seq {
		ev := export.EDLClip{
			Name:      export.SanitizeName(filepath.Base(path), 64),
			MediaPath: path,
		}
		if c := m.Clip(path); c != nil {
			ev.Frames = c.FrameCount * sampleRate
		}
		if i > 0 && i-1 < len(report) {
			ev.Note = fmt.Sprintf("TRANSITION SCORE: %.2f", report[i-1].Score)
		}
		clips = append(clips, ev)
	}
	return clips
}

func (s *Service) SubmitAnalyze(ctx context.Context, manifestPath string, opts AnalyzeOptions) (*Job, error) {
	folder, err := filepath.Abs(opts.Folder)
	if err != nil {
		return nil, fmt.Errorf("invalid folder: %w", err)
	}
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("folder does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("folder is not a directory")
	}
	if opts.SpeedMode != "" {
		if _, err := motion.ParamsFor(motion.SpeedMode(opts.SpeedMode)); err != nil {
			return nil, err
		}
	}
	opts.Folder = folder
	if manifestPath == "" {
		manifestPath = filepath.Join(folder, DefaultManifestName)
	}
	return s.submit(ctx, JobTypeAnalyze, manifestPath, opts)
}

func (s *Service) SubmitSort(ctx context.Context, manifestPath string, opts SortOptions) (*Job, error) {
	if manifestPath == "" {
		return nil, manifest.ErrNoPath
	}
	if _, err := os.Stat(manifestPath); err != nil {
		return nil, fmt.Errorf("manifest not found: %w", err)
	}
	if opts.Sorting != nil {
		if err := opts.Sorting.Validate(); err != nil {
			return nil, err
		}
	}
	return s.submit(ctx, JobTypeSort, manifestPath, opts)
}

func (s *Service) submit(ctx context.Context, jobType, manifestPath string, opts any) (*Job, error) {
	encoded, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job := &Job{
		ID:           NewID(),
		Type:         jobType,
		Status:       JobStatusPending,
		ManifestPath: manifestPath,
		Options:      string(encoded),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job created", "job_id", job.ID, "type", jobType)
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

// GetReport returns the stored transition report of a sort job.
func (s *Service) GetReport(ctx context.Context, id string) ([]scoring.Transition, error) {
	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetSortReport(ctx, id)
}

// ExecuteAnalyze runs a pending analyze job to completion.
func (s *Service) ExecuteAnalyze(ctx context.Context, job *Job) error {
	log := logging.WithJobID(s.logger, job.ID)
	var opts AnalyzeOptions
	if err := json.Unmarshal([]byte(job.Options), &opts); err != nil {
		return s.fail(ctx, job, fmt.Errorf("invalid job options: %w", err))
	}

	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")
	log.Info("starting analysis", "folder", logging.SanitizePath(opts.Folder))

	_, err := s.AnalyzeFolder(ctx, job.ManifestPath, opts, func(done, total int) {
		// 100 is reserved for the completed state
		s.repo.UpdateJobProgress(ctx, job.ID, min(99, done*100/max(total, 1)))
	})
	if err != nil {
		return s.fail(ctx, job, err)
	}

	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	log.Info("analyze job completed")
	return nil
}

// ExecuteSort runs a pending sort job and stores its sequence and report.
func (s *Service) ExecuteSort(ctx context.Context, job *Job) error {
	log := logging.WithJobID(s.logger, job.ID)
	var opts SortOptions
	if err := json.Unmarshal([]byte(job.Options), &opts); err != nil {
		return s.fail(ctx, job, fmt.Errorf("invalid job options: %w", err))
	}

	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")
	log.Info("starting sort", "manifest", logging.SanitizePath(job.ManifestPath))

	out, err := s.SortManifest(ctx, job.ManifestPath, opts)
	if out != nil {
		if saveErr := s.repo.SaveSortResult(ctx, job.ID, out.Sequence, out.Score, out.Report); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}
	if err != nil {
		return s.fail(ctx, job, err)
	}

	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	log.Info("sort job completed", "clips", len(out.Sequence), "score", out.Score)
	return nil
}

func (s *Service) fail(ctx context.Context, job *Job, err error) error {
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "cancelled"
	}
	s.repo.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, JobStatusFailed, msg)
	logging.WithJobID(s.logger, job.ID).Error("job failed", "type", job.Type, "error", err)
	return err
}
