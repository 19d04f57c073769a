package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/heimdex/clipflow/internal/scoring"
)

// WriteReport prints one block per adjacent pair: from, to, score and notes.
func WriteReport(w io.Writer, report []scoring.Transition) error {
	if _, err := fmt.Fprintln(w, "Transition Report:"); err != nil {
		return err
	}
	for _, t := range report {
		_, err := fmt.Fprintf(w, "\nFrom: %s\nTo: %s\nScore: %.2f\nNotes: %s\n",
			filepath.Base(t.From), filepath.Base(t.To), t.Score, t.Notes)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteReportFile writes the report to path, replacing any existing file.
func WriteReportFile(path string, report []scoring.Transition) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if err := WriteReport(f, report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
