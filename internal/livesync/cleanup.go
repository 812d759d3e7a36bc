package livesync

import (
	"context"
	"sync"
	"time"
)

const defaultCleanupTimeout = 10 * time.Second

// CleanupAction runs its function at most once, no matter how many exit paths
// trigger it. It runs on a context detached from the caller's cancellation so a
// cancelled cycle still reaches the device.
type CleanupAction struct {
	fn      func(ctx context.Context) error
	timeout time.Duration
	once    sync.Once
	ran     chan struct{}
}

func NewCleanupAction(fn func(ctx context.Context) error) *CleanupAction {
	return &CleanupAction{
		fn:      fn,
		timeout: defaultCleanupTimeout,
		ran:     make(chan struct{}),
	}
}

// Run executes the action if it has not run yet and returns its error.
// Every later call is a no-op returning nil.
func (c *CleanupAction) Run(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		defer close(c.ran)

		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		err = c.fn(cleanupCtx)
	})
	return err
}

// Done is closed once the action has finished
func (c *CleanupAction) Done() <-chan struct{} {
	return c.ran
}

// heartbeat calls tick on a fixed interval until stopped
type heartbeat struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func startHeartbeat(interval time.Duration, tick func()) *heartbeat {
	h := &heartbeat{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()

	return h
}

// Stop is idempotent and waits for an in-flight tick to return
func (h *heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}
