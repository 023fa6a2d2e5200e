package relay

import "time"

// State mirrors the transport-level connection state
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateDisconnected
)

// String returns a short name for logging and CLI output
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Transport is the boundary to the underlying socket. The session installs
// its handlers right after dialing and detaches them (replacing them with
// no-ops) on Close, so a closed transport can never route frames back into
// the session.
//
// A freshly dialed Transport must not deliver any event until the caller has
// installed all three handlers; installing the close handler marks the set
// complete.
type Transport interface {
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	OnClose(fn func(err error))

	// Send writes one text frame. It must preserve call order.
	Send(data []byte) error
	// Close tears the connection down. Idempotent.
	Close() error
	// Ping reports the last measured round-trip time, negative if unknown.
	Ping() time.Duration
	State() State
}

// Dialer opens a Transport bound to a pairing code. The session owns exactly
// one Dialer and constructs a fresh Transport per connection attempt.
type Dialer interface {
	Dial(code string) (Transport, error)
}
