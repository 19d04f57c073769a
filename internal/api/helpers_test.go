package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/clipflow/internal/catalog"
	"github.com/heimdex/clipflow/internal/db"
	"github.com/heimdex/clipflow/internal/extractor"
	"github.com/heimdex/clipflow/internal/motion"
	"github.com/heimdex/clipflow/internal/playback"
)

const testToken = "test-token-0123456789"

// fakeExtractor moves clips named *right* East and *left* West.
type fakeExtractor struct {
	probeErr error
}

func (f *fakeExtractor) Extract(ctx context.Context, clipPath string) (*extractor.Output, error) {
	v := motion.Vector{0, 0}
	switch name := filepath.Base(clipPath); {
	case strings.Contains(name, "right"):
		v = motion.Vector{2, 0}
	case strings.Contains(name, "left"):
		v = motion.Vector{-2, 0}
	}
	frames := make([]motion.Frame, 10)
	for i := range frames {
		frames[i] = motion.Frame{v}
	}
	return &extractor.Output{SchemaVersion: "1", Frames: frames}, nil
}

func (f *fakeExtractor) Probe(ctx context.Context) (*extractor.Info, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return &extractor.Info{Name: "fake-motion", Version: "1.2.0", ProbedAt: time.Now()}, nil
}

type testEnv struct {
	cfg    ServerConfig
	router *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := catalog.NewRepository(database.Conn())
	require.NoError(t, repo.SetConfig(context.Background(), AuthTokenKey, testToken))

	ext := &fakeExtractor{}
	svc := catalog.NewService(repo, ext, catalog.DefaultServiceConfig(), nil)
	cfg := ServerConfig{
		Service:    svc,
		Repository: repo,
		Runner:     catalog.NewRunner(svc, repo, nil),
		Probe:      extractor.NewCachedProbe(ext, nil),
		Playback:   playback.NewServer(nil),
		StartTime:  time.Now(),
		DeviceID:   "device-1",
	}
	return &testEnv{cfg: cfg, router: NewRouter(cfg)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func makeClips(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644))
	}
	return dir
}

// sortedJob analyses and sorts a small folder, returning the completed sort job.
func (e *testEnv) sortedJob(t *testing.T) *catalog.Job {
	t.Helper()
	ctx := context.Background()
	dir := makeClips(t, "a_right.mp4", "b_left.mp4", "c_right.mp4")

	analyze, err := e.cfg.Service.SubmitAnalyze(ctx, "", catalog.AnalyzeOptions{Folder: dir})
	require.NoError(t, err)
	require.NoError(t, e.cfg.Service.ExecuteAnalyze(ctx, analyze))

	seed := uint64(3)
	job, err := e.cfg.Service.SubmitSort(ctx, analyze.ManifestPath, catalog.SortOptions{Seed: &seed})
	require.NoError(t, err)
	require.NoError(t, e.cfg.Service.ExecuteSort(ctx, job))

	job, err = e.cfg.Service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	return job
}
