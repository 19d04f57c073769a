package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/clipflow/internal/db"
	"github.com/heimdex/clipflow/internal/extractor"
	"github.com/heimdex/clipflow/internal/manifest"
	"github.com/heimdex/clipflow/internal/motion"
)

func setupTestDB(t *testing.T) Repository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

// fakeExtractor reports constant motion per file name: names containing
// "left" move West, "right" East, "still" nothing, "broken" fail.
type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeExtractor) Extract(ctx context.Context, clipPath string) (*extractor.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, clipPath)
	f.mu.Unlock()

	name := filepath.Base(clipPath)
	var v motion.Vector
	switch {
	case strings.Contains(name, "broken"):
		return nil, errors.New("cannot decode")
	case strings.Contains(name, "left"):
		v = motion.Vector{-2, 0}
	case strings.Contains(name, "right"):
		v = motion.Vector{2, 0}
	}
	frames := make([]motion.Frame, 20)
	for i := range frames {
		frames[i] = motion.Frame{v}
	}
	return &extractor.Output{SchemaVersion: "1", Frames: frames}, nil
}

func (f *fakeExtractor) Probe(ctx context.Context) (*extractor.Info, error) {
	return &extractor.Info{Name: "fake"}, nil
}

func makeClips(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(n), 0o644))
	}
	return dir
}

func TestIsVideoFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.mp4": true, "B.MOV": true, "c.mkv": true, "d.avi": true,
		"e.txt": false, "noext": false, ".mp4.json": false,
	} {
		assert.Equal(t, want, IsVideoFile(name), name)
	}
}

func TestFindVideos_SkipsHiddenAndNonVideo(t *testing.T) {
	dir := makeClips(t, "b.mp4", "a.mov", "notes.txt", ".cache/x.mp4", "sub/c.mkv")
	files, err := findVideos(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.mov"),
		filepath.Join(dir, "b.mp4"),
		filepath.Join(dir, "sub", "c.mkv"),
	}, files)

	_, err = findVideos(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestService_AnalyzeFolder(t *testing.T) {
	dir := makeClips(t, "1_right.mp4", "2_left.mp4", "3_still.mp4", "4_broken.mp4")
	ext := &fakeExtractor{}
	svc := NewService(nil, ext, DefaultServiceConfig(), nil)
	manifestPath := filepath.Join(t.TempDir(), "m.json")

	var progress []int
	summary, err := svc.AnalyzeFolder(context.Background(), manifestPath,
		AnalyzeOptions{Folder: dir, SpeedMode: "precise"},
		func(done, total int) { progress = append(progress, done) })
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Found)
	assert.Equal(t, 3, summary.Analyzed)
	assert.Equal(t, []string{filepath.Join(dir, "4_broken.mp4")}, summary.Failed)
	assert.Equal(t, 3, summary.Transitions)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)

	m, err := manifest.Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, motion.East, m.Clip(filepath.Join(dir, "1_right.mp4")).End.Primary)
	assert.True(t, m.Clip(filepath.Join(dir, "3_still.mp4")).Start.IsStatic())
	assert.Equal(t, "precise", m.Metadata().AnalysisSettings["speed_mode"])

	tr, ok := m.Transition(filepath.Join(dir, "1_right.mp4"), filepath.Join(dir, "2_left.mp4"))
	require.True(t, ok)
	assert.True(t, tr.DirectionMatch)
}

func TestService_AnalyzeFolder_MergesIntoExistingManifest(t *testing.T) {
	first := makeClips(t, "a_right.mp4")
	second := makeClips(t, "b_left.mp4")
	svc := NewService(nil, &fakeExtractor{}, DefaultServiceConfig(), nil)
	manifestPath := filepath.Join(t.TempDir(), "m.json")

	_, err := svc.AnalyzeFolder(context.Background(), manifestPath, AnalyzeOptions{Folder: first}, nil)
	require.NoError(t, err)
	summary, err := svc.AnalyzeFolder(context.Background(), manifestPath, AnalyzeOptions{Folder: second}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Clips)
	assert.Equal(t, 1, summary.Transitions)
}

func TestService_AnalyzeFolder_Errors(t *testing.T) {
	svc := NewService(nil, nil, DefaultServiceConfig(), nil)
	_, err := svc.AnalyzeFolder(context.Background(), "m.json", AnalyzeOptions{Folder: t.TempDir()}, nil)
	assert.Error(t, err, "no extractor")

	svc = NewService(nil, &fakeExtractor{}, DefaultServiceConfig(), nil)
	_, err = svc.AnalyzeFolder(context.Background(), "m.json", AnalyzeOptions{Folder: t.TempDir(), SpeedMode: "warp"}, nil)
	assert.Error(t, err, "bad speed mode")
}

func analyzedManifest(t *testing.T, names ...string) (string, string) {
	t.Helper()
	dir := makeClips(t, names...)
	svc := NewService(nil, &fakeExtractor{}, DefaultServiceConfig(), nil)
	manifestPath := filepath.Join(dir, DefaultManifestName)
	_, err := svc.AnalyzeFolder(context.Background(), manifestPath, AnalyzeOptions{Folder: dir}, nil)
	require.NoError(t, err)
	return dir, manifestPath
}

func TestService_SortManifest_Materializes(t *testing.T) {
	_, manifestPath := analyzedManifest(t, "a_right.mp4", "b_left.mp4", "c_still.mp4")
	svc := NewService(nil, nil, DefaultServiceConfig(), nil)
	out := filepath.Join(t.TempDir(), "sorted")
	seed := uint64(4)

	res, err := svc.SortManifest(context.Background(), manifestPath, SortOptions{Seed: &seed, OutputDir: out})
	require.NoError(t, err)
	assert.Len(t, res.Sequence, 3)
	assert.Len(t, res.Report, 2)
	assert.Equal(t, seed, res.Seed)
	require.NotNil(t, res.Materialized)
	assert.Len(t, res.Materialized.Placed, 3)

	data, err := os.ReadFile(filepath.Join(out, "sequence_0000.mp4"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(res.Sequence[0]), string(data))

	report, err := os.ReadFile(filepath.Join(out, ReportFileName))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Transition Report:")

	// same seed, same order
	again, err := svc.SortManifest(context.Background(), manifestPath, SortOptions{Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, res.Sequence, again.Sequence)
}

func TestService_SortManifest_Errors(t *testing.T) {
	svc := NewService(nil, nil, DefaultServiceConfig(), nil)
	_, err := svc.SortManifest(context.Background(), filepath.Join(t.TempDir(), "absent.json"), SortOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, manifestPath := analyzedManifest(t, "a_right.mp4")
	bad := DefaultServiceConfig().Sorting
	bad.TransitionLookahead = -1
	_, err = svc.SortManifest(context.Background(), manifestPath, SortOptions{Sorting: &bad})
	assert.Error(t, err)
}

func TestBuildEDL(t *testing.T) {
	_, manifestPath := analyzedManifest(t, "a_right.mp4", "b_left.mp4")
	m, err := manifest.Load(manifestPath)
	require.NoError(t, err)
	seed := uint64(1)
	res, err := NewService(nil, nil, DefaultServiceConfig(), nil).SortManifest(context.Background(), manifestPath, SortOptions{Seed: &seed})
	require.NoError(t, err)

	clips := BuildEDL(m, res.Sequence, res.Report)
	require.Len(t, clips, 2)
	// balanced mode keeps every 2nd frame: 10 analysed frames stand for 20
	assert.Equal(t, 20, clips[0].Frames)
	assert.Empty(t, clips[0].Note)
	assert.Contains(t, clips[1].Note, "TRANSITION SCORE:")
}

func TestService_SubmitAndGetJob(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, &fakeExtractor{}, DefaultServiceConfig(), nil)
	ctx := context.Background()
	dir := makeClips(t, "a_right.mp4")

	job, err := svc.SubmitAnalyze(ctx, "", AnalyzeOptions{Folder: dir})
	require.NoError(t, err)
	assert.Equal(t, JobTypeAnalyze, job.Type)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, filepath.Join(dir, DefaultManifestName), job.ManifestPath)

	got, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Contains(t, got.Options, dir)

	_, err = svc.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = svc.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestService_SubmitValidation(t *testing.T) {
	svc := NewService(setupTestDB(t), nil, DefaultServiceConfig(), nil)
	ctx := context.Background()

	_, err := svc.SubmitAnalyze(ctx, "", AnalyzeOptions{Folder: "/nonexistent/clips"})
	assert.Error(t, err)
	_, err = svc.SubmitAnalyze(ctx, "", AnalyzeOptions{Folder: t.TempDir(), SpeedMode: "warp"})
	assert.Error(t, err)

	_, err = svc.SubmitSort(ctx, "", SortOptions{})
	assert.ErrorIs(t, err, manifest.ErrNoPath)
	_, err = svc.SubmitSort(ctx, filepath.Join(t.TempDir(), "absent.json"), SortOptions{})
	assert.Error(t, err)
}

func TestService_ExecuteJobs(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, &fakeExtractor{}, DefaultServiceConfig(), nil)
	ctx := context.Background()
	dir := makeClips(t, "a_right.mp4", "b_left.mp4", "c_still.mp4")

	analyze, err := svc.SubmitAnalyze(ctx, "", AnalyzeOptions{Folder: dir})
	require.NoError(t, err)
	require.NoError(t, svc.ExecuteAnalyze(ctx, analyze))

	got, err := svc.GetJob(ctx, analyze.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)

	seed := uint64(8)
	sortJob, err := svc.SubmitSort(ctx, analyze.ManifestPath, SortOptions{Seed: &seed})
	require.NoError(t, err)
	require.NoError(t, svc.ExecuteSort(ctx, sortJob))

	got, err = svc.GetJob(ctx, sortJob.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Len(t, got.Sequence, 3)
	require.NotNil(t, got.Score)

	report, err := svc.GetReport(ctx, sortJob.ID)
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, got.Sequence[0], report[0].From)
	assert.Equal(t, got.Sequence[2], report[1].To)
}

func TestService_ExecuteSort_FailsOnCorruptManifest(t *testing.T) {
	repo := setupTestDB(t)
	svc := NewService(repo, nil, DefaultServiceConfig(), nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	job, err := svc.SubmitSort(ctx, path, SortOptions{})
	require.NoError(t, err)

	err = svc.ExecuteSort(ctx, job)
	assert.ErrorIs(t, err, manifest.ErrMalformed)

	got, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "malformed manifest")
}
