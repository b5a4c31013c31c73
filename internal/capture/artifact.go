package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ArtifactKind tells why a screenshot was taken.
type ArtifactKind string

// Screenshot kinds.
const (
	ArtifactSuccess ArtifactKind = "success"
	ArtifactFailure ArtifactKind = "failure"
	ArtifactUnknown ArtifactKind = "unknown"
)

// Artifact describes the most recent screenshot.
type Artifact struct {
	Kind    ArtifactKind `json:"kind"`
	CycleID string       `json:"cycle_id,omitempty"`
	TakenAt time.Time    `json:"taken_at"`
	Size    int          `json:"size"`
}

// ArtifactStore keeps the single most recent diagnostic screenshot on disk.
//
// Thread Safety:
//   - Safe for concurrent use; readers never see a half-written file.
type ArtifactStore struct {
	path string

	mu   sync.RWMutex
	last *Artifact
}

// NewArtifactStore creates a store writing to path. A screenshot left by a
// previous run is picked up with kind unknown.
func NewArtifactStore(path string) *ArtifactStore {
	s := &ArtifactStore{path: path}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		s.last = &Artifact{Kind: ArtifactUnknown, TakenAt: info.ModTime(), Size: int(info.Size())}
	}
	return s
}

// Path returns the screenshot file path.
func (s *ArtifactStore) Path() string {
	return s.path
}

// Save replaces the screenshot atomically.
func (s *ArtifactStore) Save(kind ArtifactKind, cycleID string, png []byte, at time.Time) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".screenshot-*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Gone after a successful rename

	if _, err := tmp.Write(png); err != nil {
		tmp.Close() //nolint:errcheck // Write error takes precedence
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing artifact: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing artifact: %w", err)
	}
	s.last = &Artifact{Kind: kind, CycleID: cycleID, TakenAt: at, Size: len(png)}
	return nil
}

// Latest returns metadata of the current screenshot.
func (s *ArtifactStore) Latest() (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Artifact{}, false
	}
	return *s.last, true
}

// Read returns the screenshot bytes and metadata, or ErrNoArtifact.
func (s *ArtifactStore) Read() ([]byte, Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Artifact{}, ErrNoArtifact
	}
	if err != nil {
		return nil, Artifact{}, fmt.Errorf("reading artifact: %w", err)
	}

	meta := Artifact{Kind: ArtifactUnknown, Size: len(data)}
	if s.last != nil {
		meta = *s.last
	}
	return data, meta, nil
}
