// -----------------------------------------------------------------------
// Cancellation Controller - Set-once cancellation flags per run
// -----------------------------------------------------------------------

package scheduler

import (
	"sync"
	"sync/atomic"
)

// CancellationController holds one set-once cancellation flag per run.
// Workers poll their flag at mode boundaries; the manager and the cancel
// endpoint set it. Flags cannot be unset - cancellation is fire-and-forget
// and observed eventually via polling.
type CancellationController struct {
	mu    sync.Mutex
	flags map[string]*atomic.Bool
}

// NewCancellationController creates an empty controller
func NewCancellationController() *CancellationController {
	return &CancellationController{
		flags: make(map[string]*atomic.Bool),
	}
}

// Register creates the flag for a run and returns it. The worker keeps the
// returned pointer so per-mode checks avoid the map lookup.
func (c *CancellationController) Register(runID string) *atomic.Bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	flag := &atomic.Bool{}
	c.flags[runID] = flag
	return flag
}

// Cancel sets the flag for a run. Returns false when the run is unknown.
func (c *CancellationController) Cancel(runID string) bool {
	c.mu.Lock()
	flag, ok := c.flags[runID]
	c.mu.Unlock()

	if !ok {
		return false
	}
	flag.Store(true)
	return true
}

// IsCancelled reports whether cancellation was requested for a run
func (c *CancellationController) IsCancelled(runID string) bool {
	c.mu.Lock()
	flag, ok := c.flags[runID]
	c.mu.Unlock()

	return ok && flag.Load()
}

// Remove garbage-collects the flag alongside its run
func (c *CancellationController) Remove(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flags, runID)
}
