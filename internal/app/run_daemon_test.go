package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tams/deltabackup/internal/config"
	"github.com/dev-tams/deltabackup/internal/logging"
)

func TestRunDaemonRejectsBadSchedules(t *testing.T) {
	never := func(context.Context) (Report, error) {
		t.Fatal("run should not be called")
		return Report{}, nil
	}

	err := RunDaemon(context.Background(), config.Config{}, never, 0, logging.Discard())
	assert.ErrorContains(t, err, "schedule is empty")

	err = RunDaemon(context.Background(), config.Config{Schedule: "61 * * * *"}, never, 0, logging.Discard())
	assert.ErrorContains(t, err, "invalid schedule")

	err = RunDaemon(context.Background(), config.Config{Schedule: "0 0 31 2 *"}, never, 0, logging.Discard())
	assert.ErrorContains(t, err, "never fires")
}

func TestRunDaemonStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runs := 0
	err := RunDaemon(ctx, config.Config{Schedule: "* * * * *"}, func(context.Context) (Report, error) {
		runs++
		return Report{}, nil
	}, time.Minute, logging.Discard())
	require.NoError(t, err)
	assert.Zero(t, runs)
}

func TestRunDaemonRunsOnTickAndEnforcesTimeout(t *testing.T) {
	// A clock two minutes behind puts every computed tick in the past.
	daemonNow = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	t.Cleanup(func() { daemonNow = time.Now })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		runs        int
		hadDeadline bool
		runErr      error
	)
	run := func(runCtx context.Context) (Report, error) {
		runs++
		if runs == 1 {
			_, hadDeadline = runCtx.Deadline()
			<-runCtx.Done()
			runErr = runCtx.Err()
			return Report{RunID: "slow"}, runErr
		}
		cancel()
		return Report{RunID: "last"}, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- RunDaemon(ctx, config.Config{Schedule: "* * * * *"}, run, 20*time.Millisecond, logging.Discard())
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, 2, runs)
	assert.True(t, hadDeadline)
	assert.True(t, errors.Is(runErr, context.DeadlineExceeded))
}

func TestSleepUntilPastDeadline(t *testing.T) {
	assert.True(t, sleepUntil(context.Background(), time.Now().Add(-time.Second)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepUntil(ctx, time.Now().Add(-time.Second)))
	assert.False(t, sleepUntil(ctx, time.Now().Add(time.Hour)))
}
