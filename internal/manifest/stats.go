package manifest

import (
	"gonum.org/v1/gonum/stat"

	"github.com/heimdex/clipflow/internal/motion"
)

// DirectionDistribution counts primary directions across all clips.
type DirectionDistribution struct {
	Start map[motion.Direction]int `json:"start"`
	End   map[motion.Direction]int `json:"end"`
}

// Statistics summarises a manifest.
type Statistics struct {
	TotalClips          int                   `json:"total_clips"`
	TotalTransitions    int                   `json:"total_transitions"`
	AvgTransitionScore  float64               `json:"avg_transition_score"`
	DirectionHistograms DirectionDistribution `json:"direction_distributions"`
	Metadata            Metadata              `json:"metadata"`
}

// Statistics reports clip and transition counts, the mean transition score
// (0 with no transitions) and start/end direction histograms.
func (m *Manifest) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Statistics{
		TotalClips:       len(m.clips),
		TotalTransitions: len(m.transitions),
		DirectionHistograms: DirectionDistribution{
			Start: make(map[motion.Direction]int),
			End:   make(map[motion.Direction]int),
		},
	}

	if len(m.transitions) > 0 {
		scores := make([]float64, len(m.transitions))
		for i, t := range m.transitions {
			scores[i] = t.Score
		}
		st.AvgTransitionScore = stat.Mean(scores, nil)
	}

	for _, c := range m.clips {
		st.DirectionHistograms.Start[c.Start.Primary]++
		st.DirectionHistograms.End[c.End.Primary]++
	}

	st.Metadata = m.meta
	st.Metadata.AnalysisSettings = make(map[string]any, len(m.meta.AnalysisSettings))
	for k, v := range m.meta.AnalysisSettings {
		st.Metadata.AnalysisSettings[k] = v
	}
	return st
}
