package session

// Stop cancels the current session from any state and releases the camera
// before returning, unless an initialization step is still in flight, in
// which case that step releases what it acquired as soon as it resolves.
// Stop never fails and repeated calls are no-ops.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked("stop")
}

// Dispose stops the controller for good. Later Start calls return
// ErrDisposed; Stop and Dispose remain no-ops.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.teardownLocked("dispose")
	c.disposed = true
}

// teardownLocked invalidates in-flight async steps, stops the engine and
// moves to Stopped.
func (c *Controller) teardownLocked(reason string) {
	c.gen++
	c.cancelLocked()
	if h := c.handle; h != nil {
		c.handle = nil
		c.safeStop(h)
	}
	if c.state == StateStopped {
		return
	}
	c.logger.Debug("session teardown", "reason", reason, "state", c.state.String())
	c.transitionLocked(StateStopped, "", nil)
}

// safeStop stops h, logging and swallowing any panic.
func (c *Controller) safeStop(h Handle) {
	if h == nil {
		return
	}
	defer recoverLog(c.logger, "engine stop failed")
	h.Stop()
}
