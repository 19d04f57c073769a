package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/clipflow/internal/motion"
)

var (
	// ErrMalformed marks a manifest file that cannot be trusted.
	ErrMalformed = errors.New("malformed manifest")
	ErrNoPath    = errors.New("no manifest path specified")
)

// Save writes the full manifest (metadata, clips, transitions) as indented JSON.
func (m *Manifest) Save(path string) error {
	if path == "" {
		return ErrNoPath
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	rec := m.toRecord()

	// Written beside path and renamed over it, so a failed save leaves the
	// previous manifest intact.
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

func (m *Manifest) toRecord() fileRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settings := m.meta.AnalysisSettings
	if settings == nil {
		settings = map[string]any{}
	}
	rec := fileRecord{
		Metadata: &metadataRecord{
			Created:          m.meta.Created,
			LastModified:     m.meta.LastModified,
			ClipCount:        m.meta.ClipCount,
			Version:          m.meta.Version,
			AnalysisSettings: settings,
		},
		Clips:       make([]ClipRecord, len(m.clips)),
		Transitions: make([]TransitionRecord, len(m.transitions)),
	}
	for i, c := range m.clips {
		rec.Clips[i] = NewClipRecord(c)
	}
	for i, t := range m.transitions {
		rec.Transitions[i] = NewTransitionRecord(t)
	}
	return rec
}

// Load reads a manifest written by Save. A missing file is returned as a
// wrapped fs.ErrNotExist; any content problem wraps ErrMalformed.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	var rec fileRecord
	dec := json.NewDecoder(f)
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after manifest", ErrMalformed)
	}

	m, err := fromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// Open loads the manifest at path, or returns an empty manifest when the
// file does not exist yet.
func Open(path string) (*Manifest, error) {
	m, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	return m, err
}

func fromRecord(rec fileRecord) (*Manifest, error) {
	if rec.Metadata == nil {
		return nil, fmt.Errorf("metadata is missing")
	}
	if !compatibleVersion(rec.Metadata.Version) {
		return nil, fmt.Errorf("unsupported schema version %q", rec.Metadata.Version)
	}

	m := New()
	clips := make([]*motion.Clip, 0, len(rec.Clips))
	for i, cr := range rec.Clips {
		c, err := cr.Clip()
		if err != nil {
			return nil, fmt.Errorf("clips[%d]: %w", i, err)
		}
		clips = append(clips, c)
	}
	for _, c := range clips {
		if i, ok := m.clipIndex[c.Path]; ok {
			m.clips[i] = c
			continue
		}
		m.clipIndex[c.Path] = len(m.clips)
		m.clips = append(m.clips, c)
	}

	for i, tr := range rec.Transitions {
		t, err := tr.Transition()
		if err != nil {
			return nil, fmt.Errorf("transitions[%d]: %w", i, err)
		}
		m.addTransitionLocked(t)
	}

	settings := rec.Metadata.AnalysisSettings
	if settings == nil {
		settings = map[string]any{}
	}
	m.meta = Metadata{
		Created:          rec.Metadata.Created,
		LastModified:     rec.Metadata.LastModified,
		ClipCount:        len(m.clips),
		Version:          rec.Metadata.Version,
		AnalysisSettings: settings,
	}
	if m.meta.Created.IsZero() {
		m.meta.Created = time.Now().UTC()
	}
	return m, nil
}

// compatibleVersion accepts any 1.x schema.
func compatibleVersion(v string) bool {
	major, _, _ := strings.Cut(v, ".")
	return major == "1"
}

// DecodeClip parses a single JSON clip record, as produced by NewClipRecord.
func DecodeClip(data []byte) (*motion.Clip, error) {
	var rec ClipRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c, err := rec.Clip()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}
