package relay

import (
	"sync"

	"github.com/peakwire/conduit/internal/protocol"
)

// completion fires exactly once with the Result of a request
type completion func(protocol.Result)

// correlator hands out sequence numbers and matches RESPONSE frames back to
// the request that carried them. A pending entry whose response never arrives
// stays in the map for the life of the process; that is accepted behavior,
// callers get no cancellation primitive.
type correlator struct {
	mu      sync.Mutex
	seq     uint64
	pending map[uint64]completion
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[uint64]completion)}
}

// add allocates the next sequence number and registers fn under it
func (c *correlator) add(fn completion) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.seq
	c.seq++
	c.pending[id] = fn
	return id
}

// resolve fires and removes the completion for id. It reports false for ids
// with no pending entry (stale, duplicate or unknown responses).
func (c *correlator) resolve(id uint64, res protocol.Result) bool {
	c.mu.Lock()
	fn, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	fn(res)
	return true
}

// abandon drops a pending entry without firing it, used when the request
// frame never made it onto the wire.
func (c *correlator) abandon(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// outstanding reports the number of requests still awaiting a response
func (c *correlator) outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
