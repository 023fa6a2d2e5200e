package relay

import (
	"sync"

	"github.com/samber/lo"

	"github.com/peakwire/conduit/internal/protocol"
)

// Handler consumes the Result of an update or a bootstrap request
type Handler func(protocol.Result)

type observation struct {
	matcher Matcher
	handler Handler
}

// registry is the ordered set of active observations. Duplicates on the same
// matcher are allowed and all fire independently.
type registry struct {
	mu  sync.Mutex
	obs []observation
}

func newRegistry() *registry {
	return &registry{}
}

func (r *registry) add(m Matcher, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{matcher: m, handler: h})
}

// remove drops every observation whose matcher equals m and returns how many
// were dropped.
func (r *registry) remove(m Matcher) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept, removed := lo.FilterReject(r.obs, func(o observation, _ int) bool {
		return !o.matcher.equal(m)
	})
	r.obs = kept
	return len(removed)
}

// matching returns the handlers whose matcher fires for path, in
// registration order. Invocation happens at the call site so a slow handler
// never holds the registry lock.
func (r *registry) matching(path string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := lo.Filter(r.obs, func(o observation, _ int) bool {
		return o.matcher.Matches(path)
	})
	return lo.Map(matched, func(o observation, _ int) Handler {
		return o.handler
	})
}

// snapshot copies the current observations for handshake replay
func (r *registry) snapshot() []observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]observation, len(r.obs))
	copy(out, r.obs)
	return out
}
