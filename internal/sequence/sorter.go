// Package sequence orders the clips of a manifest so that each clip's end
// motion flows into the next clip's start motion.
package sequence

import (
	"cmp"
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/heimdex/clipflow/internal/manifest"
	"github.com/heimdex/clipflow/internal/motion"
	"github.com/heimdex/clipflow/internal/scoring"
)

const (
	immediateWeight = 0.7
	futureWeight    = 0.3
	// equalScoreBand groups candidates treated as ties.
	equalScoreBand = 0.01
	seedPoolSize   = 3
	minWindow      = 2
	maxWindow      = 4
)

// Sorter runs the greedy lookahead search plus local optimisation over one
// manifest. A Sorter is not safe for concurrent use.
type Sorter struct {
	manifest *manifest.Manifest
	cfg      Config
	rng      *rand.Rand
	logger   *slog.Logger

	clips    map[string]*motion.Clip
	cache    map[scoring.Pair]scoring.Transition
	sequence []string
}

type Option func(*Sorter)

// WithRand injects the random source. Sorts are reproducible for a given
// source state.
func WithRand(r *rand.Rand) Option {
	return func(s *Sorter) { s.rng = r }
}

// WithSeed is WithRand over a PCG source seeded with seed.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sorter) { s.logger = l }
}

func New(m *manifest.Manifest, cfg Config, opts ...Option) *Sorter {
	s := &Sorter{
		manifest: m,
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		cache:    make(map[scoring.Pair]scoring.Transition),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Sort orders every clip in the manifest. See SortContext.
func (s *Sorter) Sort() []string {
	seq, _ := s.SortContext(context.Background())
	return seq
}

// SortContext orders every clip in the manifest and returns the sequence.
// The result is always a permutation of the manifest's clip paths. ctx is
// checked between placements and between optimisation iterations; on
// cancellation the partial state is discarded and ctx.Err() returned.
func (s *Sorter) SortContext(ctx context.Context) ([]string, error) {
	clips := s.manifest.Clips()
	s.clips = make(map[string]*motion.Clip, len(clips))
	for _, c := range clips {
		s.clips[c.Path] = c
	}
	clear(s.cache)
	s.sequence = nil

	if len(clips) == 0 {
		return []string{}, nil
	}

	first := s.pickSeed(clips)
	seq := make([]string, 0, len(clips))
	seq = append(seq, first)

	remaining := make([]string, 0, len(clips)-1)
	for _, c := range clips {
		if c.Path != first {
			remaining = append(remaining, c.Path)
		}
	}

	fallbacks := 0
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := seq[len(seq)-1]

		next, ok := s.findBestNext(current, remaining, 0)
		if ok {
			fallbacks = 0
		} else {
			next = remaining[s.rng.IntN(len(remaining))]
			fallbacks++
		}

		// The forced pick replaces the fallback and is not held to
		// MinTransitionScore.
		if fallbacks > s.cfg.MaxConsecutiveStatic {
			if directional := s.directional(remaining); len(directional) > 0 {
				forced := directional[s.rng.IntN(len(directional))]
				s.logger.Debug("forcing directional clip",
					"after", current, "fallback", next, "forced", forced)
				next = forced
				fallbacks = 0
			}
		}

		seq = append(seq, next)
		remaining = without(remaining, slices.Index(remaining, next))
	}

	seq, err := s.optimize(ctx, seq)
	if err != nil {
		return nil, err
	}
	s.sequence = seq
	return slices.Clone(seq), nil
}

// pickSeed chooses uniformly among the strongest non-static starts, or any
// clip when every start is static.
func (s *Sorter) pickSeed(clips []*motion.Clip) string {
	var pool []*motion.Clip
	for _, c := range clips {
		if !c.Start.IsStatic() {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return clips[s.rng.IntN(len(clips))].Path
	}

	slices.SortStableFunc(pool, func(a, b *motion.Clip) int {
		if c := cmp.Compare(b.Start.Strength(), a.Start.Strength()); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	if len(pool) > seedPoolSize {
		pool = pool[:seedPoolSize]
	}
	return pool[s.rng.IntN(len(pool))].Path
}

func (s *Sorter) directional(paths []string) []string {
	var out []string
	for _, p := range paths {
		if c := s.clips[p]; c != nil && !c.Start.IsStatic() {
			out = append(out, p)
		}
	}
	return out
}

type candidate struct {
	path  string
	score float64
}

// findBestNext returns the best successor of current among remaining.
// Only candidates whose immediate score meets MinTransitionScore are
// considered, and only their subtrees are explored. remaining is never
// modified; each level works on its own copy minus the candidate.
func (s *Sorter) findBestNext(current string, remaining []string, depth int) (string, bool) {
	if depth >= s.cfg.TransitionLookahead || len(remaining) == 0 {
		return "", false
	}

	cands := make([]candidate, 0, len(remaining))
	for i, next := range remaining {
		immediate := s.score(current, next)
		if immediate < s.cfg.MinTransitionScore {
			continue
		}
		future := 0.0
		if depth < s.cfg.TransitionLookahead-1 {
			if after, ok := s.findBestNext(next, without(remaining, i), depth+1); ok {
				future = s.score(next, after)
			}
		}
		cands = append(cands, candidate{
			path:  next,
			score: immediateWeight*immediate + futureWeight*future,
		})
	}
	if len(cands) == 0 {
		return "", false
	}

	slices.SortStableFunc(cands, func(a, b candidate) int {
		return cmp.Compare(b.score, a.score)
	})
	if !s.cfg.RandomizeEqualScores {
		return cands[0].path, true
	}

	top := cands[0].score
	n := 1
	for n < len(cands) && top-cands[n].score < equalScoreBand {
		n++
	}
	return cands[s.rng.IntN(n)].path, true
}

// without returns a copy of paths with index i removed.
func without(paths []string, i int) []string {
	out := make([]string, 0, len(paths)-1)
	out = append(out, paths[:i]...)
	return append(out, paths[i+1:]...)
}

// optimize tries every pairwise swap inside random windows of seq and keeps
// the best-scoring variant seen across all iterations. Windows are always
// drawn from seq itself; a variant is adopted only when it beats the best
// score so far.
func (s *Sorter) optimize(ctx context.Context, seq []string) ([]string, error) {
	best := slices.Clone(seq)
	bestScore := s.sequenceScore(seq)
	if len(seq) < 2 {
		return best, nil
	}

	variant := make([]string, len(seq))
	for iter := 0; iter < s.cfg.OptimizeIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := s.rng.IntN(len(seq) - 1)
		length := min(minWindow+s.rng.IntN(maxWindow-minWindow+1), len(seq)-start)

		for i := 0; i < length-1; i++ {
			for j := i + 1; j < length; j++ {
				copy(variant, seq)
				variant[start+i], variant[start+j] = variant[start+j], variant[start+i]
				if score := s.sequenceScore(variant); score > bestScore {
					bestScore = score
					copy(best, variant)
				}
			}
		}
	}

	s.logger.Debug("sequence optimised",
		"initial_score", s.sequenceScore(seq), "final_score", bestScore,
		"iterations", s.cfg.OptimizeIterations)
	return best, nil
}

// sequenceScore is the mean score of consecutive pairs, 0 below two clips.
func (s *Sorter) sequenceScore(seq []string) float64 {
	if len(seq) < 2 {
		return 0
	}
	scores := make([]float64, len(seq)-1)
	for i := range scores {
		scores[i] = s.score(seq[i], seq[i+1])
	}
	return stat.Mean(scores, nil)
}

// score returns the memoised transition score for from -> to.
func (s *Sorter) score(from, to string) float64 {
	return s.transition(from, to).Score
}

func (s *Sorter) transition(from, to string) scoring.Transition {
	key := scoring.Pair{From: from, To: to}
	if t, ok := s.cache[key]; ok {
		return t
	}
	t := scoring.Score(s.clips[from], s.clips[to])
	s.cache[key] = t
	return t
}

// Sequence returns the result of the last sort.
func (s *Sorter) Sequence() []string {
	return slices.Clone(s.sequence)
}

// Score is the mean transition score of the last sorted sequence.
func (s *Sorter) Score() float64 {
	return s.sequenceScore(s.sequence)
}

// TransitionReport scores each adjacent pair of the last sorted sequence.
// It is empty when fewer than two clips were sorted.
func (s *Sorter) TransitionReport() []scoring.Transition {
	if len(s.sequence) < 2 {
		return []scoring.Transition{}
	}
	report := make([]scoring.Transition, 0, len(s.sequence)-1)
	for i := 0; i < len(s.sequence)-1; i++ {
		report = append(report, s.transition(s.sequence[i], s.sequence[i+1]))
	}
	return report
}
