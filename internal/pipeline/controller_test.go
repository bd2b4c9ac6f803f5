package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	r.started <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestController_StartStop(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	runner := &blockingRunner{started: make(chan struct{}, 1)}
	c := NewController(runner, logger)

	require.NoError(t, c.Start())
	<-runner.started
	assert.True(t, c.Running())

	assert.ErrorIs(t, c.Start(), ErrAlreadyRunning)

	require.NoError(t, c.Stop())
	assert.False(t, c.Running())

	assert.ErrorIs(t, c.Stop(), ErrNotRunning)
}

func TestController_StopWithoutStart(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	c := NewController(&blockingRunner{started: make(chan struct{}, 1)}, logger)

	assert.ErrorIs(t, c.Stop(), ErrNotRunning)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "not started")
}

func TestController_RestartAfterRunnerExits(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	calls := make(chan struct{}, 2)
	c := NewController(runnerFunc(func(ctx context.Context) error {
		calls <- struct{}{}
		return errors.New("store unreadable")
	}), logger)

	require.NoError(t, c.Start())
	<-calls
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, time.Millisecond)

	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "❌ Parsing stopped unexpectedly" {
			found = true
		}
	}
	assert.True(t, found)

	require.NoError(t, c.Start())
	<-calls
}

func TestController_StopCancelsInFlightPosting(t *testing.T) {
	tr := newFakeTransport(indexPage("/slow", "/never"))
	tr.blocking[origin+"/slow"] = true
	tr.details[origin+"/never"] = []response{{html: detailPage("Never")}}
	fx := newFixture(t, tr, time.Hour)

	logger, _ := logtest.NewNullLogger()
	c := NewController(fx.pipeline, logger)
	require.NoError(t, c.Start())

	for url := range tr.started {
		if url == origin+"/slow" {
			break
		}
	}

	stopped := make(chan error, 1)
	go func() { stopped <- c.Stop() }()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Empty(t, fx.notifier.urls())
	assert.Equal(t, 0, tr.fetchCount(origin+"/never"))
	assert.False(t, fx.known.Contains(origin+"/slow"), "cancelled posting is not recorded")
	assert.False(t, c.Running())
}

// slowRunner keeps going for a while after cancellation, like a browser stuck
// in navigation, and tracks how many runs overlap.
type slowRunner struct {
	active    atomic.Int32
	peak      atomic.Int32
	cancelled chan struct{}
	linger    time.Duration
}

func (r *slowRunner) Run(ctx context.Context) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	<-ctx.Done()
	select {
	case r.cancelled <- struct{}{}:
	default:
	}
	time.Sleep(r.linger)
	return ctx.Err()
}

func TestController_StartWhileStoppingIsRefused(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	runner := &slowRunner{cancelled: make(chan struct{}, 1), linger: 100 * time.Millisecond}
	c := NewController(runner, logger)

	require.NoError(t, c.Start())

	stopped := make(chan error, 1)
	go func() { stopped <- c.Stop() }()
	<-runner.cancelled

	assert.True(t, c.Running(), "a run that is shutting down is still running")
	assert.ErrorIs(t, c.Start(), ErrAlreadyRunning)

	require.NoError(t, <-stopped)
	assert.False(t, c.Running())

	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())
	assert.Equal(t, int32(1), runner.peak.Load())
}

func TestController_StopAfterRunnerExitedItself(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	c := NewController(runnerFunc(func(ctx context.Context) error { return nil }), logger)

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Stop(), ErrNotRunning)
}
