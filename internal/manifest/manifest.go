// Package manifest holds the clip motion records of a batch together with the
// pairwise transition scores computed over them, and persists both as JSON.
package manifest

import (
	"sync"
	"time"

	"github.com/heimdex/clipflow/internal/motion"
	"github.com/heimdex/clipflow/internal/scoring"
)

// SchemaVersion is written to every saved manifest.
const SchemaVersion = "1.0"

// Metadata describes the manifest itself.
type Metadata struct {
	Created          time.Time      `json:"created"`
	LastModified     time.Time      `json:"last_modified"`
	ClipCount        int            `json:"clip_count"`
	Version          string         `json:"version"`
	AnalysisSettings map[string]any `json:"analysis_settings"`
}

// Manifest is an ordered set of clips keyed by path plus the transition
// scores between them. It is safe for concurrent use.
type Manifest struct {
	mu sync.RWMutex

	clips     []*motion.Clip
	clipIndex map[string]int

	transitions []scoring.Transition
	pairIndex   map[scoring.Pair]int

	meta Metadata
	now  func() time.Time
}

// New returns an empty manifest.
func New() *Manifest {
	return newWithClock(func() time.Time { return time.Now().UTC() })
}

func newWithClock(now func() time.Time) *Manifest {
	ts := now()
	return &Manifest{
		clipIndex: make(map[string]int),
		pairIndex: make(map[scoring.Pair]int),
		meta: Metadata{
			Created:          ts,
			LastModified:     ts,
			Version:          SchemaVersion,
			AnalysisSettings: map[string]any{},
		},
		now: now,
	}
}

// AddClip inserts the clip or replaces the existing clip with the same path,
// keeping its position.
func (m *Manifest) AddClip(c *motion.Clip) {
	if c == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.clipIndex[c.Path]; ok {
		m.clips[i] = c
	} else {
		m.clipIndex[c.Path] = len(m.clips)
		m.clips = append(m.clips, c)
	}
	m.meta.ClipCount = len(m.clips)
	m.meta.LastModified = m.now()
}

// Clip returns the clip stored under path, or nil.
func (m *Manifest) Clip(path string) *motion.Clip {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i, ok := m.clipIndex[path]; ok {
		return m.clips[i]
	}
	return nil
}

// Clips returns the clips in manifest order.
func (m *Manifest) Clips() []*motion.Clip {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*motion.Clip, len(m.clips))
	copy(out, m.clips)
	return out
}

func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clips)
}

// AddTransition drops any stored transition for the same ordered pair, then
// appends t.
func (m *Manifest) AddTransition(t scoring.Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addTransitionLocked(t)
}

func (m *Manifest) addTransitionLocked(t scoring.Transition) {
	key := t.Pair()
	if i, ok := m.pairIndex[key]; ok {
		m.transitions = append(m.transitions[:i], m.transitions[i+1:]...)
		m.reindexTransitionsLocked()
	}
	m.pairIndex[key] = len(m.transitions)
	m.transitions = append(m.transitions, t)
}

func (m *Manifest) reindexTransitionsLocked() {
	m.pairIndex = make(map[scoring.Pair]int, len(m.transitions))
	for i, t := range m.transitions {
		m.pairIndex[t.Pair()] = i
	}
}

// Transition returns the stored score for from -> to.
func (m *Manifest) Transition(from, to string) (scoring.Transition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.pairIndex[scoring.Pair{From: from, To: to}]
	if !ok {
		return scoring.Transition{}, false
	}
	return m.transitions[i], true
}

// Transitions returns the stored transitions in insertion order.
func (m *Manifest) Transitions() []scoring.Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]scoring.Transition, len(m.transitions))
	copy(out, m.transitions)
	return out
}

// CompatibleTransitions returns the stored transitions leaving from whose
// score is at least minScore, in stored order.
func (m *Manifest) CompatibleTransitions(from string, minScore float64) []scoring.Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []scoring.Transition
	for _, t := range m.transitions {
		if t.From == from && t.Score >= minScore {
			out = append(out, t)
		}
	}
	return out
}

// Metadata returns a copy of the manifest metadata.
func (m *Manifest) Metadata() Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta := m.meta
	meta.AnalysisSettings = make(map[string]any, len(m.meta.AnalysisSettings))
	for k, v := range m.meta.AnalysisSettings {
		meta.AnalysisSettings[k] = v
	}
	return meta
}

// SetAnalysisSetting records a free-form analysis parameter in the metadata.
func (m *Manifest) SetAnalysisSetting(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.meta.AnalysisSettings == nil {
		m.meta.AnalysisSettings = map[string]any{}
	}
	m.meta.AnalysisSettings[key] = value
	m.meta.LastModified = m.now()
}
