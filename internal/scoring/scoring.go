// Package scoring rates how smoothly one clip hands over to the next, based on
// the end motion of the first clip and the start motion of the second.
package scoring

import (
	"fmt"
	"strings"

	"github.com/heimdex/clipflow/internal/motion"
)

const (
	DirectionWeight = 0.7
	IntensityWeight = 0.3

	// intensityMatchBelow is the largest intensity gap still counted as a match.
	intensityMatchBelow = 0.5
	// intensityScale is the intensity gap at which the intensity score reaches 0.
	intensityScale = 2.0

	InvalidClipNote = "Invalid clip data"
)

// Transition is the directional compatibility of From followed by To.
type Transition struct {
	From           string  `json:"from_clip"`
	To             string  `json:"to_clip"`
	Score          float64 `json:"score"`
	DirectionMatch bool    `json:"direction_match"`
	IntensityMatch bool    `json:"intensity_match"`
	Notes          string  `json:"notes"`
}

// Pair is an ordered (from, to) clip pair.
type Pair struct {
	From string
	To   string
}

func (t Transition) Pair() Pair {
	return Pair{From: t.From, To: t.To}
}

// Score compares from's end motion against to's start motion. A nil clip
// yields a zero score with InvalidClipNote.
func Score(from, to *motion.Clip) Transition {
	if from == nil || to == nil {
		t := Transition{Notes: InvalidClipNote}
		if from != nil {
			t.From = from.Path
		}
		if to != nil {
			t.To = to.Path
		}
		return t
	}

	end := from.End
	start := to.Start
	notes := make([]string, 0, 2)

	var directionScore float64
	directionMatch := false
	if end.Primary != motion.Static && start.Primary == end.Primary.Opposite() {
		directionScore = 1
		directionMatch = true
		notes = append(notes, "Perfect direction match")
	} else {
		angle := motion.AngleDiff(end.Primary, start.Primary)
		directionScore = 1 - angle/180
		notes = append(notes, fmt.Sprintf("Partial direction match (%.1f°)", angle))
	}

	diff := end.Intensity - start.Intensity
	if diff < 0 {
		diff = -diff
	}
	intensityScore := 1 - min(1, diff/intensityScale)
	intensityMatch := diff < intensityMatchBelow
	if intensityMatch {
		notes = append(notes, "Intensity matched")
	} else {
		notes = append(notes, fmt.Sprintf("Intensity difference: %.2f", diff))
	}

	return Transition{
		From:           from.Path,
		To:             to.Path,
		Score:          DirectionWeight*directionScore + IntensityWeight*intensityScore,
		DirectionMatch: directionMatch,
		IntensityMatch: intensityMatch,
		Notes:          strings.Join(notes, "; "),
	}
}
