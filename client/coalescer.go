package client

import (
	"sync"
	"time"
)

type inflightCall struct {
	done   chan struct{}
	body   []byte
	status int
	err    error
}

// Coalescer collapses concurrent identical requests into one network
// round trip. Every joiner observes the same resolved value or the
// same failure. Failed calls are dropped immediately so the next
// caller retries fresh; successful calls linger for a short grace
// window to absorb near-simultaneous follow-up reads.
type Coalescer struct {
	mu    sync.Mutex
	calls map[string]*inflightCall
	grace time.Duration
}

func NewCoalescer(grace time.Duration) *Coalescer {
	if grace < 0 {
		grace = 0
	}
	return &Coalescer{
		calls: make(map[string]*inflightCall),
		grace: grace,
	}
}

// BeginOrJoin runs perform under the fingerprint, or attaches to an
// already-running call for it. The second return value reports whether
// this caller joined an existing call.
func (c *Coalescer) BeginOrJoin(fingerprint string, perform func() ([]byte, int, error)) ([]byte, int, bool, error) {
	c.mu.Lock()
	if call, exists := c.calls[fingerprint]; exists {
		c.mu.Unlock()
		<-call.done
		return call.body, call.status, true, call.err
	}

	call := &inflightCall{done: make(chan struct{})}
	c.calls[fingerprint] = call
	c.mu.Unlock()

	call.body, call.status, call.err = perform()
	close(call.done)

	if call.err != nil {
		c.remove(fingerprint, call)
	} else if c.grace > 0 {
		time.AfterFunc(c.grace, func() {
			c.remove(fingerprint, call)
		})
	} else {
		c.remove(fingerprint, call)
	}

	return call.body, call.status, false, call.err
}

// Forget drops any registered call for the fingerprint without waiting
// for it to settle.
func (c *Coalescer) Forget(fingerprint string) {
	c.mu.Lock()
	delete(c.calls, fingerprint)
	c.mu.Unlock()
}

func (c *Coalescer) remove(fingerprint string, call *inflightCall) {
	c.mu.Lock()
	if current, exists := c.calls[fingerprint]; exists && current == call {
		delete(c.calls, fingerprint)
	}
	c.mu.Unlock()
}

func (c *Coalescer) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
