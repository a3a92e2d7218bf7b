package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(time.Second)
	assert.Error(t, s.Add("not a spec", "bad", func(context.Context) (int, error) { return 0, nil }))
	assert.NoError(t, s.Add("@every 1m", "ok", func(context.Context) (int, error) { return 0, nil }))
}

func TestRunBoundsContext(t *testing.T) {
	s := New(50 * time.Millisecond)
	var sawDeadline atomic.Bool
	s.run("deadline", func(ctx context.Context) (int, error) {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		return 1, nil
	})
	assert.True(t, sawDeadline.Load())

	// Failures are logged, not propagated.
	s.run("failing", func(context.Context) (int, error) { return 0, errors.New("boom") })
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(time.Second)
	var runs atomic.Int32
	require.NoError(t, s.Add("@every 1s", "tick", func(context.Context) (int, error) {
		runs.Add(1)
		return 0, nil
	}))
	s.Start()
	defer s.Stop(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
