package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peakwire/conduit/internal/protocol"
)

func TestCorrelatorSequence(t *testing.T) {
	c := newCorrelator()

	noop := func(protocol.Result) {}
	assert.Equal(t, uint64(0), c.add(noop))
	assert.Equal(t, uint64(1), c.add(noop))
	assert.Equal(t, uint64(2), c.add(noop))
	assert.Equal(t, 3, c.outstanding())
}

func TestCorrelatorResolve(t *testing.T) {
	c := newCorrelator()

	var got []protocol.Result
	id := c.add(func(r protocol.Result) { got = append(got, r) })

	assert.True(t, c.resolve(id, protocol.Result{Status: 200}))
	assert.Len(t, got, 1)
	assert.Equal(t, 200, got[0].Status)

	// A second response for the same id is stale and fires nothing.
	assert.False(t, c.resolve(id, protocol.Result{Status: 500}))
	assert.Len(t, got, 1)

	assert.False(t, c.resolve(999, protocol.Result{}), "unknown ids are ignored")
}

func TestCorrelatorAbandon(t *testing.T) {
	c := newCorrelator()

	id := c.add(func(protocol.Result) { t.Fatal("abandoned completion must not fire") })
	c.abandon(id)

	assert.Equal(t, 0, c.outstanding())
	assert.False(t, c.resolve(id, protocol.Result{}))
}
