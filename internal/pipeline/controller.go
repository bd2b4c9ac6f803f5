package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyRunning = errors.New("pipeline already running")
	ErrNotRunning     = errors.New("pipeline not started")
)

type Runner interface {
	Run(ctx context.Context) error
}

// Controller runs a Runner as a cancellable background goroutine.
type Controller struct {
	runner Runner
	log    logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewController(runner Runner, log logrus.FieldLogger) *Controller {
	return &Controller{runner: runner, log: log}
}

// Start launches the runner. It refuses to start a second run while one is
// still active.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeLocked() {
		return ErrAlreadyRunning
	}

	if c.cancel != nil {
		c.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	go func() {
		defer close(done)
		err := c.runner.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.log.WithError(err).Error("❌ Parsing stopped unexpectedly")
		}
	}()

	c.log.Info("🚀 Parsing started")
	return nil
}

// Stop cancels the run and waits for it to return. Until it has returned the
// run still counts as active, so a concurrent Start gets ErrAlreadyRunning.
func (c *Controller) Stop() error {
	c.mu.Lock()
	active := c.activeLocked()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if !active {
		c.log.Error("Error stopping parsing: parsing not started")
		return ErrNotRunning
	}

	cancel()
	<-done
	c.log.Info("🛑 Parsing stopped")
	return nil
}

// Running reports whether a run is in progress.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *Controller) activeLocked() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}
