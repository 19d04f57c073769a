// Package playback streams clips of a sorted sequence for preview, with HTTP
// byte-range support so players can seek.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrPosition = errors.New("position out of range")

// videoTypes covers the clip formats the analyzer accepts; the system MIME
// table often lacks them.
var videoTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".mkv": "video/x-matroska",
	".avi": "video/x-msvideo",
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{logger: logger}
}

// ClipAt resolves a zero-based position string against a sequence.
func ClipAt(sequence []string, position string) (string, error) {
	i, err := strconv.Atoi(position)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a number", ErrPosition, position)
	}
	if i < 0 || i >= len(sequence) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrPosition, i, len(sequence))
	}
	return sequence[i], nil
}

// ServeClip writes the file at path. A missing file is answered with 404
// and a nil error; other failures are returned to the caller.
func (s *Server) ServeClip(w http.ResponseWriter, r *http.Request, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	contentType := videoTypes[ext]
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	s.logger.Debug("serving clip", "size", stat.Size(), "range", r.Header.Get("Range"))
	http.ServeContent(w, r, filepath.Base(path), stat.ModTime(), file)
	return nil
}
