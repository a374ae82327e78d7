package batch

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"registrar/internal/render"
)

// WriteFiles stores each artifact under dir, replacing files atomically.
// It returns the written paths in artifact order.
func WriteFiles(dir string, artifacts []render.Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, art := range artifacts {
		target := filepath.Join(dir, filepath.Base(art.Filename))
		if err := writeAtomic(target, art.Data); err != nil {
			return paths, err
		}
		paths = append(paths, target)
	}
	return paths, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".registrar-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Bundle writes the artifacts into a zip archive. Entries are sorted by
// filename and stamped with modTime so identical artifacts yield identical
// archives.
func Bundle(w io.Writer, artifacts []render.Artifact, modTime time.Time) error {
	sorted := append([]render.Artifact(nil), artifacts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	zw := zip.NewWriter(w)
	seen := make(map[string]bool, len(sorted))
	for _, art := range sorted {
		name := filepath.Base(art.Filename)
		if seen[name] {
			return fmt.Errorf("duplicate file %s in bundle", name)
		}
		seen[name] = true
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modTime.UTC()}
		hdr.SetMode(0o644)
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := entry.Write(art.Data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return zw.Close()
}
