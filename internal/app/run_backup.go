package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dev-tams/deltabackup/internal/config"
	"github.com/dev-tams/deltabackup/internal/detect"
	"github.com/dev-tams/deltabackup/internal/dump"
	"github.com/dev-tams/deltabackup/internal/notify"
	"github.com/dev-tams/deltabackup/internal/snapshot"
	"github.com/dev-tams/deltabackup/internal/stats"
	"github.com/dev-tams/deltabackup/internal/storage"
)

const notificationTimeout = 5 * time.Second

// Deps are the collaborators of a run. Tests swap Source and Engine for fakes.
type Deps struct {
	Source   stats.Source
	Engine   dump.Engine
	Mirrors  []storage.Mirror
	Notifier notify.Notifier
	Log      logrus.FieldLogger
}

// Report describes one run. Results holds every attempted target in the
// order it was dumped.
type Report struct {
	RunID         string
	Started       time.Time
	Duration      time.Duration
	Decisions     []detect.Decision
	Results       []dump.Result
	Skipped       []string
	SnapshotSaved bool
}

// Failed returns the results that carry an error.
func (r Report) Failed() []dump.Result {
	var out []dump.Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Bytes is the total size written across all targets.
func (r Report) Bytes() int64 {
	var n int64
	for _, res := range r.Results {
		n += res.Bytes
	}
	return n
}

type Backup struct {
	cfg   config.Config
	deps  Deps
	store *snapshot.Store
	orch  *dump.Orchestrator
}

func NewBackup(cfg config.Config, deps Deps) *Backup {
	if deps.Log == nil {
		deps.Log = logrus.New()
	}
	return &Backup{
		cfg:   cfg,
		deps:  deps,
		store: snapshot.New(cfg.SnapshotPath(), deps.Log),
		orch:  dump.NewOrchestrator(deps.Engine, cfg, deps.Mirrors, deps.Log),
	}
}

// DepsFromConfig wires the production collaborators. The returned closer
// releases mirror clients that hold connections.
func DepsFromConfig(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (Deps, func(), error) {
	var src stats.Source
	switch cfg.Backup.StatsSource {
	case config.SourceSQL:
		src = stats.SQLSource{Open: stats.OpenPgx, Exclude: cfg.Backup.Exclude}
	default:
		src = stats.PsqlSource{Binary: cfg.Tools.Psql, Exclude: cfg.Backup.Exclude}
	}

	mirrors, err := storage.MirrorsFromConfig(ctx, cfg.Mirrors)
	if err != nil {
		return Deps{}, nil, err
	}

	dispatcher, err := notify.NewDispatcher(cfg.Notifications)
	if err != nil {
		return Deps{}, nil, err
	}

	closeAll := func() {
		for _, m := range mirrors {
			if c, ok := m.(io.Closer); ok {
				if err := c.Close(); err != nil {
					log.WithError(err).WithField("mirror", m.Name()).Debug("close mirror")
				}
			}
		}
	}

	return Deps{
		Source:   src,
		Engine:   dump.PgEngine{PgDump: cfg.Tools.PgDump, PgDumpall: cfg.Tools.PgDumpall},
		Mirrors:  mirrors,
		Notifier: dispatcher,
		Log:      log,
	}, closeAll, nil
}

// Run executes globals, stats collection, per-database dumps and the
// snapshot save, in that order. Every target is attempted; the returned
// error joins all failures.
func (b *Backup) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Started: time.Now().UTC()}
	log := b.deps.Log.WithField("run_id", rep.RunID)
	log.WithFields(logrus.Fields{
		"dir":      b.cfg.Backup.Dir,
		"format":   b.cfg.Backup.Format,
		"snapshot": b.store.Path(),
	}).Info("backup run started")

	var errs []error
	record := func(res dump.Result) {
		rep.Results = append(rep.Results, res)
		if res.Err != nil {
			log.WithError(res.Err).WithField("target", res.Target.Label()).Error("dump failed")
			errs = append(errs, res.Err)
			return
		}
		log.WithFields(logrus.Fields{
			"target":   res.Target.Label(),
			"dest":     res.Dest,
			"bytes":    res.Bytes,
			"duration": res.Duration.Round(time.Millisecond),
		}).Info("dump published")
	}

	record(b.orch.Dump(ctx, dump.Globals()))

	lines, previous, current, err := b.collect(ctx, log)
	if err != nil {
		errs = append(errs, err)
		return b.finish(ctx, log, rep, errs)
	}

	rep.Decisions = detect.Plan(previous, current, b.cfg.Backup.ForceAll)
	for _, d := range rep.Decisions {
		dlog := log.WithFields(logrus.Fields{"db": d.Name, "reason": d.Reason})
		if !d.Backup {
			dlog.Info("skipping, no row changes since last snapshot")
			rep.Skipped = append(rep.Skipped, d.Name)
			continue
		}
		if d.Reason == detect.ReasonNew {
			dlog.Info("not in previous snapshot, backing up")
		}
		for _, t := range []dump.Target{dump.Schema(d.Name), dump.Full(d.Name, b.cfg.Backup.Format)} {
			if err := ctx.Err(); err != nil {
				record(dump.Result{Target: t, Err: &dump.Error{Target: t.Label(), Op: dump.OpDump, Err: err}})
				continue
			}
			record(b.orch.Dump(ctx, t))
		}
	}

	// Saved even when dumps failed: the snapshot tracks observed activity,
	// not backup success.
	if err := b.store.Save(ctx, lines); err != nil {
		errs = append(errs, fmt.Errorf("save snapshot: %w", err))
	} else {
		rep.SnapshotSaved = true
		log.WithField("path", b.store.Path()).Debug("snapshot saved")
	}

	return b.finish(ctx, log, rep, errs)
}

// Plan runs stats collection and change detection only. Nothing is dumped
// and the snapshot is left alone.
func (b *Backup) Plan(ctx context.Context) ([]detect.Decision, error) {
	_, previous, current, err := b.collect(ctx, b.deps.Log)
	if err != nil {
		return nil, err
	}
	return detect.Plan(previous, current, b.cfg.Backup.ForceAll), nil
}

func (b *Backup) collect(ctx context.Context, log logrus.FieldLogger) ([]string, stats.Snapshot, stats.Snapshot, error) {
	lines, err := b.deps.Source.Collect(ctx, b.cfg.Connection)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("collect stats: %w", err)
	}

	current, lineErrs := stats.Parse(lines)
	for _, le := range lineErrs {
		log.WithError(le).WithField("line", le.Line).Warn("dropping malformed stats line")
	}
	log.WithField("databases", len(current)).Debug("stats collected")

	return lines, b.store.Load(), current, nil
}

func (b *Backup) finish(ctx context.Context, log logrus.FieldLogger, rep Report, errs []error) (Report, error) {
	rep.Duration = time.Since(rep.Started)
	err := errors.Join(errs...)

	fields := logrus.Fields{
		"dumped":   len(rep.Results) - len(rep.Failed()),
		"skipped":  len(rep.Skipped),
		"failed":   len(rep.Failed()),
		"duration": rep.Duration.Round(time.Millisecond),
	}
	if err != nil {
		log.WithFields(fields).Error("backup run finished with errors")
	} else {
		log.WithFields(fields).Info("backup run finished")
	}

	b.notify(ctx, log, rep, err)
	return rep, err
}

func (b *Backup) notify(ctx context.Context, log logrus.FieldLogger, rep Report, runErr error) {
	if b.deps.Notifier == nil {
		return
	}

	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	if err := b.deps.Notifier.Notify(notifyCtx, eventFor(b.cfg, rep, runErr)); err != nil {
		log.WithError(err).Warn("notification failed")
	}
}

func eventFor(cfg config.Config, rep Report, runErr error) notify.Event {
	ev := notify.Event{
		RunID:         rep.RunID,
		Host:          cfg.Connection.Host,
		Status:        notify.StatusSuccess,
		Duration:      rep.Duration.Round(time.Millisecond).String(),
		Skipped:       rep.Skipped,
		Bytes:         rep.Bytes(),
		SnapshotSaved: rep.SnapshotSaved,
	}
	for _, res := range rep.Results {
		if res.Err != nil {
			ev.Failed = append(ev.Failed, notify.FailedEvent{Target: res.Target.Label(), Error: res.Err.Error()})
			continue
		}
		ev.Dumped = append(ev.Dumped, res.Target.Label())
	}
	if runErr != nil {
		ev.Status = notify.StatusFailure
		ev.Error = runErr.Error()
	}
	return ev
}

// notificationContext outlives a cancelled run so the failure still gets out.
func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}
