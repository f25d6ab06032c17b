package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrFormat is returned (wrapped) when a manifest file cannot be
// interpreted: wrong format version, wrong structure, or truncated JSON.
// Plain IO errors (missing file, permissions) are returned unwrapped so
// callers can tell the two apart.
var ErrFormat = errors.New("invalid manifest")

// PathFor returns the manifest path for a tree root, honoring an explicit
// override when one is given.
func PathFor(root, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(root, DefaultFilename)
}

// Save serializes the manifest to path atomically: the JSON is written to
// a temp file in the same directory and renamed into place, so a crash
// mid-write never leaves a corrupt or half-written manifest behind.
func Save(m *Manifest, path string) error {
	if err := m.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads and validates a manifest. Structural problems wrap ErrFormat;
// a missing or unreadable file returns the underlying IO error.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
