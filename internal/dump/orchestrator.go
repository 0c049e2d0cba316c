package dump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dev-tams/deltabackup/internal/compression"
	"github.com/dev-tams/deltabackup/internal/config"
	"github.com/dev-tams/deltabackup/internal/storage"
	"github.com/dev-tams/deltabackup/internal/storage/local"
)

const (
	OpValidate = "validate"
	OpOpen     = "open"
	OpDump     = "dump"
	OpCompress = "compress"
	OpPublish  = "publish"
	OpMirror   = "mirror"
)

// Error is a failure for one target at one step.
type Error struct {
	Target string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Target, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of one Dump call. Err is nil on success.
type Result struct {
	Target   Target
	Dest     string
	Mirrors  []string
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Orchestrator runs the engine into <final>.tmp and renames it into place
// only when the engine reports success.
type Orchestrator struct {
	engine      Engine
	conn        config.ConnectionConfig
	store       *local.Storage
	hostPrefix  string
	compression string
	mirrors     []storage.Mirror
	log         logrus.FieldLogger
}

func NewOrchestrator(engine Engine, cfg config.Config, mirrors []storage.Mirror, log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		engine:      engine,
		conn:        cfg.Connection,
		store:       local.New(cfg.Backup.Dir),
		hostPrefix:  cfg.HostPrefix(),
		compression: cfg.Backup.Compression,
		mirrors:     mirrors,
		log:         log,
	}
}

// Dump produces t. It never aborts the caller: every failure ends up in
// Result.Err and the previously published file for t is left untouched.
func (o *Orchestrator) Dump(ctx context.Context, t Target) Result {
	started := time.Now()
	res := Result{Target: t}
	fail := func(op string, err error) Result {
		res.Duration = time.Since(started)
		res.Err = &Error{Target: t.Label(), Op: op, Err: err}
		return res
	}

	if err := t.Validate(); err != nil {
		return fail(OpValidate, err)
	}

	key := t.FileName(o.hostPrefix, o.compression)
	w, err := o.store.OpenWriter(ctx, key)
	if err != nil {
		return fail(OpOpen, err)
	}
	log := o.log.WithFields(logrus.Fields{"target": t.Label(), "tmp": w.TempPath()})
	log.Debug("dump started")

	counter := &countingWriter{w: w}
	var out io.Writer = counter
	var zw io.WriteCloser
	if t.Compressed() {
		zw, err = compression.NewWriter(o.compression, counter)
		if err != nil {
			w.Abort()
			return fail(OpCompress, err)
		}
		out = zw
	}

	if err := o.engine.Dump(ctx, t, o.conn, out); err != nil {
		if zw != nil {
			_ = zw.Close()
		}
		w.Abort()
		return fail(OpDump, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			w.Abort()
			return fail(OpCompress, err)
		}
	}
	if err := w.Close(); err != nil {
		return fail(OpPublish, err)
	}

	res.Dest = w.Location()
	res.Bytes = counter.n

	if err := o.mirror(ctx, key, res.Dest, &res); err != nil {
		return fail(OpMirror, err)
	}

	res.Duration = time.Since(started)
	log.WithFields(logrus.Fields{"dest": res.Dest, "bytes": res.Bytes}).Debug("dump published")
	return res
}

// mirror uploads the published file to every mirror. All mirrors are tried;
// failures are joined.
func (o *Orchestrator) mirror(ctx context.Context, key, path string, res *Result) error {
	var errs []error
	for _, m := range o.mirrors {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("reopen %s: %w", path, err)
		}
		loc, err := m.Put(ctx, key, f)
		_ = f.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("mirror %s: %w", m.Name(), err))
			continue
		}
		res.Mirrors = append(res.Mirrors, loc)
	}
	return errors.Join(errs...)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
