package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// TempSuffix marks files that are still being written.
const TempSuffix = ".tmp"

// Storage publishes files under a base directory. Readers of a final path
// only ever see a complete file: writes go to <final>.tmp and are renamed
// into place on Close.
type Storage struct {
	base string
}

func New(basePath string) *Storage {
	return &Storage{base: basePath}
}

// Path returns the final path for key.
func (s *Storage) Path(key string) string {
	return filepath.Join(s.base, filepath.FromSlash(key))
}

// OpenWriter starts a new version of key. Nothing is visible at the final
// path until Close succeeds.
func (s *Storage) OpenWriter(_ context.Context, key string) (*Writer, error) {
	finalPath := s.Path(key)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	tmpPath := finalPath + TempSuffix
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}

	return &Writer{f: f, tmpPath: tmpPath, finalPath: finalPath}, nil
}

// WriteFile atomically replaces key with data.
func (s *Storage) WriteFile(ctx context.Context, key string, data []byte) error {
	w, err := s.OpenWriter(ctx, key)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Abort()
		return fmt.Errorf("write temp: %w", err)
	}
	return w.Close()
}

type Writer struct {
	f         *os.File
	tmpPath   string
	finalPath string
	done      bool
}

func (w *Writer) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *Writer) Location() string { return w.finalPath }

func (w *Writer) TempPath() string { return w.tmpPath }

// Close flushes the temp file and renames it over the final path.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}
	// Something removed the temp file behind our back; don't publish a hole.
	if _, err := os.Stat(w.tmpPath); err != nil {
		return fmt.Errorf("temp file vanished before publish: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Abort discards the temp file and leaves any previous final file alone.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.f.Close()
	_ = os.Remove(w.tmpPath)
}
