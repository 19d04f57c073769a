package manifest

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/clipflow/internal/scoring"
)

// AnalyzeAllTransitions replaces the transition set with a score for every
// forward pair (i < j in manifest order). This is O(n²) in the clip count;
// callers accept that cost for manifests of up to a few thousand clips.
// Backward pairs (j -> i) are not scored.
func (m *Manifest) AnalyzeAllTransitions() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transitions = m.transitions[:0]
	m.pairIndex = make(map[scoring.Pair]int, len(m.clips)*len(m.clips)/2)
	for i, from := range m.clips {
		for _, to := range m.clips[i+1:] {
			m.addTransitionLocked(scoring.Score(from, to))
		}
	}
}

// AnalyzeAllTransitionsParallel computes the same forward-pair scores as
// AnalyzeAllTransitions on up to workers goroutines (GOMAXPROCS when <= 0).
// Rows are scored independently from a snapshot of the clips and merged into
// the manifest only after every row has finished; on cancellation the
// existing transitions are left untouched.
func (m *Manifest) AnalyzeAllTransitionsParallel(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	clips := m.Clips()
	rows := make([][]scoring.Transition, len(clips))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range clips {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row := make([]scoring.Transition, 0, len(clips)-i-1)
			for _, to := range clips[i+1:] {
				row = append(row, scoring.Score(clips[i], to))
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.transitions = m.transitions[:0]
	m.pairIndex = make(map[scoring.Pair]int, len(clips)*len(clips)/2)
	for _, row := range rows {
		for _, t := range row {
			m.addTransitionLocked(t)
		}
	}
	return nil
}
