package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/domain"
)

// SourceFactory opens the frame source for a new run.
type SourceFactory func(ctx context.Context) (camera.Source, error)

// Controller owns at most one running camera loop feeding a session.
type Controller struct {
	processor *Processor
	open      SourceFactory
	sink      camera.Sink

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// NewController creates a controller. A nil sink discards frames.
func NewController(p *Processor, open SourceFactory, sink camera.Sink) *Controller {
	if sink == nil {
		sink = camera.DiscardSink{}
	}
	return &Controller{processor: p, open: open, sink: sink}
}

// Start opens the source, starts the session and runs the loop in the
// background. If the source cannot be opened the session stays Idle.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runningLocked() {
		return "", fmt.Errorf("start: camera loop already running: %w", domain.ErrSessionActive)
	}

	src, err := c.open(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrDeviceUnavailable, err)
		}
		return "", err
	}

	session := c.processor.Session()
	id, err := session.Start()
	if err != nil {
		_ = src.Close()
		return "", err
	}

	// The loop outlives the request that started it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.lastErr = nil

	go func() {
		defer close(done)
		defer cancel()

		err := camera.Run(loopCtx, src, c.sink, c.processor.Handle)
		if cerr := src.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing frame source failed")
		}
		if session.Active() {
			_ = session.Stop()
		}
		if err != nil {
			log.WithError(err).Error("camera loop ended with error")
		}

		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
	}()

	return id, nil
}

// Stop cancels the loop, waits for the in-flight frame to finish and stops
// the session. It returns the loop's error, if any.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.runningLocked() {
		c.mu.Unlock()
		return fmt.Errorf("stop: %w", domain.ErrSessionIdle)
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	return c.Err()
}

// Wait blocks until the current loop ends and returns its error.
func (c *Controller) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	return c.Err()
}

// Running reports whether a loop is in progress.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runningLocked()
}

// Err returns the error the last loop ended with.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close stops a running loop and closes the sink.
func (c *Controller) Close() error {
	if c.Running() {
		_ = c.Stop()
	}
	return c.sink.Close()
}

func (c *Controller) runningLocked() bool {
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
