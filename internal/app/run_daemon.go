package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dev-tams/deltabackup/internal/config"
	"github.com/dev-tams/deltabackup/internal/schedule"
)

// daemonNow is the clock ticks are computed from.
var daemonNow = time.Now

// Runner is one backup run. The daemon calls it once per schedule tick.
type Runner func(ctx context.Context) (Report, error)

// RunDaemon triggers run on every tick of cfg.Schedule until ctx is done.
// Runs never overlap. A failed run is logged and the daemon keeps going.
func RunDaemon(ctx context.Context, cfg config.Config, run Runner, runTimeout time.Duration, log logrus.FieldLogger) error {
	expr := strings.TrimSpace(cfg.Schedule)
	if expr == "" {
		return fmt.Errorf("daemon: schedule is empty")
	}
	spec, err := schedule.Parse(expr)
	if err != nil {
		return fmt.Errorf("daemon: invalid schedule %q: %w", expr, err)
	}

	log = log.WithField("schedule", expr)
	log.Info("daemon started")

	for {
		next := spec.Next(daemonNow())
		if next.IsZero() {
			return fmt.Errorf("daemon: schedule %q never fires", expr)
		}
		log.WithField("next", next.Format(time.RFC3339)).Debug("waiting for next run")

		if !sleepUntil(ctx, next) {
			log.Info("daemon: shutdown requested")
			return nil
		}

		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if runTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, runTimeout)
		}
		rep, err := run(runCtx)
		timedOut := runTimeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded)
		cancel()

		rlog := log.WithField("run_id", rep.RunID)
		switch {
		case timedOut:
			rlog.WithError(err).WithField("timeout", runTimeout).Error("daemon: run timed out")
		case err != nil:
			rlog.WithError(err).Error("daemon: run finished with errors")
		default:
			rlog.Info("daemon: run finished")
		}

		if ctx.Err() != nil {
			log.Info("daemon: shutdown requested")
			return nil
		}
	}
}

// sleepUntil blocks until t or ctx is done. It reports false on ctx.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
