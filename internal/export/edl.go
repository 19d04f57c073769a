// Package export writes a sorted clip sequence out as sequence-numbered
// files, a plain-text transition report, or a CMX3600 edit decision list.
package export

import (
	"fmt"
	"math"
	"strings"
)

const defaultFPS = 30

// GenerateEDL lays clips end to end on the record timeline.
func GenerateEDL(clips []EDLClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = defaultFPS
	}

	lines := []string{"TITLE: " + title}
	if isDropFrame(frameRate) {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	record := 0
	for i, clip := range clips {
		frames := max(clip.Frames, 0)
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				framesToTimecode(0, fps), framesToTimecode(frames, fps),
				framesToTimecode(record, fps), framesToTimecode(record+frames, fps)),
			"* FROM CLIP NAME:  "+clip.Name,
			"* SOURCE FILE:  "+clip.MediaPath,
		)
		if clip.Note != "" {
			lines = append(lines, "* "+clip.Note)
		}
		record += frames
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func isDropFrame(rate float64) bool {
	return math.Abs(rate-29.97) < 0.01 || math.Abs(rate-59.94) < 0.01
}

func framesToTimecode(total, fps int) string {
	frames := total % fps
	seconds := total / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60, frames)
}
