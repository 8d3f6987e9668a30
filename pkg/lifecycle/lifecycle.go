// Package lifecycle coordinates startup and shutdown hooks across subsystems.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator manages startup and shutdown hooks for the application lifecycle.
// A startup hook that returns an error keeps the coordinator from becoming ready.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup

	drainMu sync.Mutex
	drain   []func()

	mu         sync.RWMutex
	ready      bool
	startupErr []error
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func() error) {
	c.startupWg.Go(func() {
		if err := fn(); err != nil {
			c.mu.Lock()
			c.startupErr = append(c.startupErr, err)
			c.mu.Unlock()
		}
	})
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// OnDrain registers a function that runs when shutdown begins, before the
// context is cancelled. Shutdown hooks do not start until every drain hook
// has returned or the shutdown timeout elapses.
func (c *Coordinator) OnDrain(fn func()) {
	c.drainMu.Lock()
	c.drain = append(c.drain, fn)
	c.drainMu.Unlock()
}

// Ready returns true after all startup hooks have completed without error.
func (c *Coordinator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Err returns the joined startup hook failures, if any.
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return errors.Join(c.startupErr...)
}

// WaitForStartup blocks until all startup hooks have completed. The ready flag
// is set only when every hook succeeded; the joined failures are returned.
func (c *Coordinator) WaitForStartup() error {
	c.startupWg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	err := errors.Join(c.startupErr...)
	c.ready = err == nil
	return err
}

// Shutdown runs the drain hooks, then cancels the context and waits for
// shutdown hooks. Both phases share the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	c.drainMu.Lock()
	hooks := c.drain
	c.drain = nil
	c.drainMu.Unlock()

	var drainWg sync.WaitGroup
	for _, fn := range hooks {
		drainWg.Go(fn)
	}

	var errs []error
	if !waitFor(&drainWg, timer.C) {
		errs = append(errs, fmt.Errorf("drain timeout after %v", timeout))
	}

	c.cancel()

	if len(errs) == 0 && !waitFor(&c.shutdownWg, timer.C) {
		errs = append(errs, fmt.Errorf("shutdown timeout after %v", timeout))
	}
	return errors.Join(errs...)
}

func waitFor(wg *sync.WaitGroup, expired <-chan time.Time) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-expired:
		return false
	}
}
