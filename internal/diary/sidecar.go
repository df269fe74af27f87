package diary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SidecarPath is where the metadata for a crop artifact lives:
// <dir>/metadata_<basename without extension>.json.
func SidecarPath(videoPath string) string {
	dir, name := filepath.Split(LocalPath(videoPath))
	return filepath.Join(dir, "metadata_"+strings.TrimSuffix(name, filepath.Ext(name))+".json")
}

// legacySidecarPath is <path without extension>_metadata.json.
func legacySidecarPath(videoPath string) string {
	p := LocalPath(videoPath)
	return strings.TrimSuffix(p, filepath.Ext(p)) + "_metadata.json"
}

// WriteSidecar writes meta next to videoPath and returns the sidecar path.
func WriteSidecar(videoPath string, meta VideoMetadata) (string, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	path := SidecarPath(videoPath)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	return path, nil
}

// ReadSidecar loads the metadata for videoPath. It returns nil, nil when no
// sidecar exists under either naming scheme.
func ReadSidecar(videoPath string) (*VideoMetadata, error) {
	for _, path := range []string{legacySidecarPath(videoPath), SidecarPath(videoPath)} {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read metadata: %w", err)
		}
		var meta VideoMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", filepath.Base(path), err)
		}
		return &meta, nil
	}
	return nil, nil
}
