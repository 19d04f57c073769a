package sequence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/clipflow/internal/manifest"
	"github.com/heimdex/clipflow/internal/motion"
)

func clip(path string, start, end motion.Direction, intensity float64) *motion.Clip {
	return &motion.Clip{
		Path:       path,
		Start:      motion.NewSummary(start, motion.NoDirection, intensity, 0.9),
		End:        motion.NewSummary(end, motion.NoDirection, intensity, 0.9),
		FrameCount: 48,
	}
}

func manifestOf(clips ...*motion.Clip) *manifest.Manifest {
	m := manifest.New()
	for _, c := range clips {
		m.AddClip(c)
	}
	return m
}

func mixedManifest(n int) *manifest.Manifest {
	dirs := append([]motion.Direction{}, motion.Directions...)
	m := manifest.New()
	for i := 0; i < n; i++ {
		m.AddClip(clip(fmt.Sprintf("clip_%02d.mp4", i), dirs[i%len(dirs)], dirs[(i*3+1)%len(dirs)], float64(i%5)/2))
	}
	return m
}

func TestSort_IsPermutation(t *testing.T) {
	m := mixedManifest(17)
	var want []string
	for _, c := range m.Clips() {
		want = append(want, c.Path)
	}

	for seed := uint64(0); seed < 20; seed++ {
		s := New(m, DefaultConfig(), WithSeed(seed))
		got := s.Sort()
		assert.ElementsMatch(t, want, got, "seed %d", seed)
		assert.Equal(t, got, s.Sequence())
	}
}

func TestSort_SameSeedSameSequence(t *testing.T) {
	m := mixedManifest(12)
	a := New(m, DefaultConfig(), WithSeed(42)).Sort()
	b := New(m, DefaultConfig(), WithSeed(42)).Sort()
	assert.Equal(t, a, b)
}

func TestSort_AllStaticTerminates(t *testing.T) {
	m := manifest.New()
	for i := 0; i < 8; i++ {
		m.AddClip(clip(fmt.Sprintf("s%d", i), motion.Static, motion.Static, 0))
	}
	s := New(m, DefaultConfig(), WithSeed(7))
	got := s.Sort()
	assert.Len(t, got, 8)
	// static -> static scores 0.3, below the threshold everywhere
	for _, tr := range s.TransitionReport() {
		assert.InDelta(t, 0.3, tr.Score, 1e-9)
	}
}

func TestSort_EmptyManifest(t *testing.T) {
	s := New(manifest.New(), DefaultConfig())
	assert.Empty(t, s.Sort())
	report := s.TransitionReport()
	assert.NotNil(t, report)
	assert.Empty(t, report)
	assert.Equal(t, 0.0, s.Score())
}

func TestSort_SingleClip(t *testing.T) {
	s := New(manifestOf(clip("only.mp4", motion.East, motion.East, 1)), DefaultConfig())
	assert.Equal(t, []string{"only.mp4"}, s.Sort())
	assert.Empty(t, s.TransitionReport())
}

func TestSort_SeedPrefersStrongStart(t *testing.T) {
	m := manifestOf(
		clip("weak", motion.East, motion.East, 0.1),
		clip("still", motion.Static, motion.Static, 0),
		clip("strong", motion.North, motion.East, 5),
	)
	cfg := DefaultConfig()
	cfg.OptimizeIterations = 0
	for seed := uint64(0); seed < 10; seed++ {
		got := New(m, cfg, WithSeed(seed)).Sort()
		assert.NotEqual(t, "still", got[0], "seed %d", seed)
	}
}

func TestFindBestNext_ThresholdExcludesCandidates(t *testing.T) {
	// A -> B is a perfect match; A -> C scores 0.35.
	m := manifestOf(
		clip("A", motion.North, motion.East, 1),
		clip("B", motion.West, motion.North, 1),
		clip("C", motion.North, motion.North, 3),
	)
	cfg := DefaultConfig()
	cfg.TransitionLookahead = 1

	for seed := uint64(0); seed < 10; seed++ {
		s := New(m, cfg, WithSeed(seed))
		s.Sort()
		next, ok := s.findBestNext("A", []string{"B", "C"}, 0)
		require.True(t, ok)
		assert.Equal(t, "B", next)

		_, ok = s.findBestNext("A", []string{"C"}, 0)
		assert.False(t, ok)
	}
}

func TestFindBestNext_DepthLimit(t *testing.T) {
	m := manifestOf(clip("A", motion.North, motion.East, 1), clip("B", motion.West, motion.North, 1))
	cfg := DefaultConfig()
	cfg.TransitionLookahead = 0
	s := New(m, cfg, WithSeed(1))
	s.Sort()
	_, ok := s.findBestNext("A", []string{"B"}, 0)
	assert.False(t, ok)
}

func TestFindBestNext_LookaheadPrefersContinuation(t *testing.T) {
	// From A, both B and C are perfect immediate matches; only C leads on to D.
	m := manifestOf(
		clip("A", motion.North, motion.East, 1),
		clip("B", motion.West, motion.Static, 1),
		clip("C", motion.West, motion.South, 1),
		clip("D", motion.North, motion.East, 1),
	)
	cfg := DefaultConfig()
	cfg.TransitionLookahead = 2
	s := New(m, cfg, WithSeed(3))
	s.Sort()

	remaining := []string{"B", "C", "D"}
	next, ok := s.findBestNext("A", remaining, 0)
	require.True(t, ok)
	assert.Equal(t, "C", next)
	assert.Equal(t, []string{"B", "C", "D"}, remaining, "remaining is not modified")
}

func TestFindBestNext_NoRandomTakesTop(t *testing.T) {
	m := manifestOf(
		clip("A", motion.North, motion.East, 1),
		clip("B", motion.West, motion.North, 1),
		clip("C", motion.West, motion.North, 1.2),
	)
	cfg := DefaultConfig()
	cfg.TransitionLookahead = 1
	cfg.RandomizeEqualScores = false
	s := New(m, cfg, WithSeed(9))
	s.Sort()
	next, ok := s.findBestNext("A", []string{"C", "B"}, 0)
	require.True(t, ok)
	assert.Equal(t, "B", next)
}

func TestSort_ForcesDirectionalAfterFallback(t *testing.T) {
	// No transition can meet the threshold, so every placement is a
	// fallback and every one is then forced onto a directional clip while
	// any remain.
	m := manifestOf(
		clip("s1", motion.Static, motion.Static, 0),
		clip("s2", motion.Static, motion.Static, 0),
		clip("s3", motion.Static, motion.Static, 0),
		clip("d1", motion.East, motion.East, 1),
		clip("d2", motion.North, motion.North, 1),
		clip("d3", motion.South, motion.South, 1),
	)
	cfg := DefaultConfig()
	cfg.MinTransitionScore = 2
	cfg.MaxConsecutiveStatic = 0
	cfg.OptimizeIterations = 0

	for seed := uint64(0); seed < 15; seed++ {
		got := New(m, cfg, WithSeed(seed)).Sort()
		require.Len(t, got, 6)
		assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, got[:3], "seed %d: %v", seed, got)
	}
}

func TestOptimize_NeverWorsens(t *testing.T) {
	m := mixedManifest(10)
	for seed := uint64(0); seed < 10; seed++ {
		cfg := DefaultConfig()
		cfg.OptimizeIterations = 0
		s := New(m, cfg, WithSeed(seed))
		greedy := s.Sort()
		before := s.sequenceScore(greedy)

		s.cfg.OptimizeIterations = 200
		opt, err := s.optimize(context.Background(), greedy)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s.sequenceScore(opt), before)
		assert.ElementsMatch(t, greedy, opt)
	}
}

func TestOptimize_FindsBetterSwap(t *testing.T) {
	m := manifestOf(
		clip("A", motion.North, motion.East, 1),
		clip("B", motion.West, motion.East, 1),
		clip("C", motion.West, motion.East, 1),
	)
	cfg := DefaultConfig()
	cfg.OptimizeIterations = 50
	s := New(m, cfg, WithSeed(5))
	s.Sort()

	// B,A,C scores worse than A,B,C.
	opt, err := s.optimize(context.Background(), []string{"B", "A", "C"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.sequenceScore(opt), 1e-9)
}

func TestTransitionReport_TwoClips(t *testing.T) {
	m := manifestOf(
		clip("A", motion.West, motion.East, 1),
		clip("B", motion.West, motion.South, 1),
	)
	s := New(m, DefaultConfig(), WithSeed(11))
	seq := s.Sort()
	require.Len(t, seq, 2)

	report := s.TransitionReport()
	require.Len(t, report, 1)
	assert.Equal(t, seq[0], report[0].From)
	assert.Equal(t, seq[1], report[0].To)
	if seq[0] == "A" {
		assert.InDelta(t, 1.0, report[0].Score, 1e-9)
		assert.True(t, report[0].DirectionMatch)
		assert.True(t, report[0].IntensityMatch)
	}
	assert.InDelta(t, report[0].Score, s.Score(), 1e-9)
}

func TestSortContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(mixedManifest(5), DefaultConfig(), WithSeed(2))
	_, err := s.SortContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Sequence())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.TransitionLookahead = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.OptimizeIterations = -5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxConsecutiveStatic = -1
	assert.Error(t, cfg.Validate())
}
