package batch

import "sync/atomic"

// Canceler is a cooperative stop flag. The driver polls it once per word, so a
// request takes effect after the in-flight lookup returns.
// A nil *Canceler never reports a request.
type Canceler struct {
	requested atomic.Bool
}

// RequestCancel asks the batch to stop. It is safe to call more than once and
// from any goroutine.
func (c *Canceler) RequestCancel() {
	if c != nil {
		c.requested.Store(true)
	}
}

// Requested reports whether a stop was requested.
func (c *Canceler) Requested() bool {
	return c != nil && c.requested.Load()
}
