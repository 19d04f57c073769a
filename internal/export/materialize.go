package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Placement records where one clip of the sequence was written.
type Placement struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
	Linked bool   `json:"linked"`
}

type MaterializeResult struct {
	Placed  []Placement `json:"placed"`
	Skipped []string    `json:"skipped"`
}

// SequenceFileName is the destination name of the clip at position i.
func SequenceFileName(i int, source string) string {
	return fmt.Sprintf("sequence_%04d%s", i, filepath.Ext(source))
}

// Materialize writes the sequence into outDir as sequence_NNNN<ext> entries,
// hard-linking each source and copying when linking fails. Sources that no
// longer exist are logged and skipped. Other per-clip failures do not stop
// the run; they are joined into the returned error.
func Materialize(ctx context.Context, sequence []string, outDir string, logger *slog.Logger) (MaterializeResult, error) {
	var res MaterializeResult
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return res, fmt.Errorf("failed to create output directory: %w", err)
	}

	var errs []error
	for i, src := range sequence {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		info, err := os.Stat(src)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("source clip not found, skipping", "clip", src, "position", i)
			res.Skipped = append(res.Skipped, src)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src, err))
			continue
		}

		dest := filepath.Join(outDir, SequenceFileName(i, src))
		linked, err := linkOrCopy(src, dest, info)
		if err != nil {
			logger.Error("failed to place clip", "clip", src, "dest", dest, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src, err))
			continue
		}
		res.Placed = append(res.Placed, Placement{Source: src, Dest: dest, Linked: linked})
	}

	logger.Info("sequence materialized",
		"output_dir", outDir, "placed", len(res.Placed), "skipped", len(res.Skipped))
	return res, errors.Join(errs...)
}

// linkOrCopy places src at dest. An existing dest that is already src (a
// link left by an earlier run) counts as placed; any other file there is
// removed first. dest is never opened in place, since it may be a hard link
// to some other source clip.
func linkOrCopy(src, dest string, info os.FileInfo) (bool, error) {
	existing, err := os.Lstat(dest)
	switch {
	case err == nil:
		if os.SameFile(existing, info) {
			return true, nil
		}
		if existing.IsDir() {
			return false, fmt.Errorf("destination %s is a directory", dest)
		}
		if err := os.Remove(dest); err != nil {
			return false, fmt.Errorf("failed to replace %s: %w", dest, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}

	if err := os.Link(src, dest); err == nil {
		return true, nil
	}
	return false, copyFile(src, dest, info)
}

// copyFile copies contents and keeps the source's mode and modification time.
// The copy is written to a temp file beside dest and renamed over it.
func copyFile(src, dest string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dest), ".clipflow-*"+filepath.Ext(dest))
	if err != nil {
		return err
	}
	tmp := out.Name()
	defer os.Remove(tmp)

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(tmp, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}
