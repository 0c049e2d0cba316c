// Package snapshot persists the raw activity lines of the last run so the
// next run has something to diff against.
package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dev-tams/deltabackup/internal/stats"
	"github.com/dev-tams/deltabackup/internal/storage/local"
)

type Store struct {
	path string
	log  logrus.FieldLogger
}

func New(path string, log logrus.FieldLogger) *Store {
	return &Store{path: path, log: log}
}

func (s *Store) Path() string { return s.path }

// Load returns the stored snapshot. A missing or unreadable file is the
// empty snapshot: the caller treats that as a first run.
func (s *Store) Load() stats.Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.WithField("path", s.path).Debug("no previous snapshot, treating as first run")
		} else {
			s.log.WithError(err).WithField("path", s.path).Warn("previous snapshot unreadable, treating as first run")
		}
		return stats.Snapshot{}
	}

	snap, bad := stats.Parse(splitLines(data))
	for _, e := range bad {
		s.log.WithError(e).WithField("path", s.path).Warn("dropping malformed snapshot line")
	}
	return snap
}

// Save replaces the stored snapshot with lines, verbatim. The file is
// written to a temp path and renamed, so a crash leaves either the old or
// the new snapshot, never a mix.
func (s *Store) Save(ctx context.Context, lines []string) error {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}

	st := local.New(filepath.Dir(s.path))
	if err := st.WriteFile(ctx, filepath.Base(s.path), buf.Bytes()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.path, err)
	}
	return nil
}

func splitLines(data []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines
}
