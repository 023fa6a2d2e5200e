package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peakwire/conduit/internal/protocol"
)

// ErrNotConnected is returned by Request/Do before any frame is sent when the
// session has no established connection.
var ErrNotConnected = errors.New("relay: not connected")

// ConfigSink persists the remote identity learned during the handshake.
// Failures are logged and never block message routing.
type ConfigSink interface {
	RememberRemote(name string) error
}

// Notifier manages push-notification registration. Best-effort: errors never
// abort session logic.
type Notifier interface {
	Subscribe(ctx context.Context, token, kind string) error
	Unsubscribe(ctx context.Context, code, kind string) error
}

// RemoteInfo is the identity reported by the host in HANDSHAKE_COMPLETE
type RemoteInfo struct {
	Name              string
	Version           string
	NotificationToken string
}

// Session multiplexes request/response calls and path-based change
// subscriptions over a single Transport. It owns at most one Transport at a
// time and is constructed once by the composition root; there is no package
// global.
type Session struct {
	log      *zap.Logger
	dialer   Dialer
	config   ConfigSink
	notifier Notifier

	registry   *registry
	correlator *correlator

	mu         sync.Mutex
	transport  Transport
	connected  bool
	connecting bool
	code       string
	remote     RemoteInfo
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithConfigSink sets the store that remembers the remote's name
func WithConfigSink(sink ConfigSink) Option {
	return func(s *Session) { s.config = sink }
}

// WithNotifier sets the push-notification registration client
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// NewSession creates a session that dials through d. The session is idle
// until Connect is called.
func NewSession(d Dialer, opts ...Option) *Session {
	s := &Session{
		log:        zap.NewNop(),
		dialer:     d,
		registry:   newRegistry(),
		correlator: newCorrelator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a new Transport bound to the pairing code. Calling it while
// already connected or connecting is the reconnect path: the previous
// transport's handlers are detached and the socket force-closed before the
// new one is dialed, so two live sockets can never both deliver events.
//
// A dial failure is logged and leaves the session in the connecting state
// until Close or a later Connect.
func (s *Session) Connect(code string) {
	s.mu.Lock()
	if prev := s.transport; prev != nil {
		detach(prev)
		_ = prev.Close()
		s.transport = nil
	}
	s.connecting = true
	s.connected = false
	s.code = code
	s.mu.Unlock()

	t, err := s.dialer.Dial(code)
	if err != nil {
		s.log.Warn("relay dial failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()

	// The transport holds events until the close handler is installed.
	t.OnOpen(func() { s.handleOpen(t) })
	t.OnMessage(func(data []byte) { s.route(t, data) })
	t.OnClose(func(err error) { s.handleClose(err) })
}

// TryReconnect dials again with the last pairing code. Without a prior
// Connect there is nothing to redial and the call is a logged no-op.
func (s *Session) TryReconnect() {
	s.mu.Lock()
	code := s.code
	s.mu.Unlock()
	if code == "" {
		s.log.Warn("reconnect requested before any connect")
		return
	}
	s.Connect(code)
}

// Close detaches the transport's handlers, closes it and drops ownership.
// Outstanding requests are not failed; their completions simply never fire.
// Close with no transport is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	s.connected = false
	s.connecting = false
	s.mu.Unlock()

	if t == nil {
		return
	}
	detach(t)
	_ = t.Close()
}

// detach installs no-op handlers so nothing is routed on a socket the caller
// considers closed.
func detach(t Transport) {
	t.OnOpen(func() {})
	t.OnMessage(func([]byte) {})
	t.OnClose(func(error) {})
}

// Connected reports whether the handshake-capable connection is established
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connecting reports whether a connection attempt is in flight
func (s *Session) Connecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connecting
}

// Remote returns the identity reported by the host during the last handshake
func (s *Session) Remote() RemoteInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// Code returns the pairing code of the last Connect
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Ping returns the transport's last round-trip sample, or -1 when no
// transport is owned. Recomputed on every call, never cached.
func (s *Session) Ping() time.Duration {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return -1
	}
	return t.Ping()
}

// State returns the raw transport state. ok is false when no transport is
// owned or the transport reports itself disconnected.
func (s *Session) State() (state State, ok bool) {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return StateDisconnected, false
	}
	st := t.State()
	if st == StateDisconnected {
		return StateDisconnected, false
	}
	return st, true
}

// Observe registers a handler for updates matching m. Duplicate matchers are
// allowed and all fire independently. While connected, an exact-path observe
// immediately issues a one-shot request so the handler sees the current value
// before the first pushed update, and a SUBSCRIBE frame is sent either way.
// While disconnected the observation is recorded and replayed on the next
// handshake.
func (s *Session) Observe(m Matcher, h Handler) {
	s.registry.add(m, h)

	s.mu.Lock()
	t, connected := s.transport, s.connected
	s.mu.Unlock()
	if !connected || t == nil {
		return
	}

	if m.IsExact() {
		s.bootstrap(t, m.Source(), h)
	}
	if err := t.Send(protocol.EncodeSubscribe(m.Source())); err != nil {
		s.log.Warn("subscribe send failed", zap.String("source", m.Source()), zap.Error(err))
	}
}

// Unobserve removes every observation whose matcher equals m (exact paths by
// value, patterns by source text) and, while connected, sends one UNSUBSCRIBE
// frame for the matcher. Removing a matcher with no observations is a no-op.
func (s *Session) Unobserve(m Matcher) {
	if s.registry.remove(m) == 0 {
		return
	}

	s.mu.Lock()
	t, connected := s.transport, s.connected
	s.mu.Unlock()
	if !connected || t == nil {
		return
	}
	if err := t.Send(protocol.EncodeUnsubscribe(m.Source())); err != nil {
		s.log.Warn("unsubscribe send failed", zap.String("source", m.Source()), zap.Error(err))
	}
}

// Request issues a GET with no body. See Do.
func (s *Session) Request(path string) (<-chan protocol.Result, error) {
	return s.Do(path, "GET", nil)
}

// Do sends a one-shot request and returns a handle that resolves exactly once
// when the matching RESPONSE frame arrives. It fails fast with
// ErrNotConnected before any frame is sent. The handle itself never fails: a
// non-2xx remote status is delivered as an ordinary Result. There is no
// cancellation; a response that never arrives leaves the handle pending
// forever.
func (s *Session) Do(path, method string, body any) (<-chan protocol.Result, error) {
	s.mu.Lock()
	t, connected := s.transport, s.connected
	s.mu.Unlock()
	if !connected || t == nil {
		return nil, ErrNotConnected
	}

	ch := make(chan protocol.Result, 1)
	if err := s.send(t, path, method, body, func(res protocol.Result) { ch <- res }); err != nil {
		return nil, err
	}
	return ch, nil
}

// send allocates a sequence number, registers the completion and puts the
// REQUEST frame on the wire. The pending entry is dropped if the frame never
// leaves.
func (s *Session) send(t Transport, path, method string, body any, fn completion) error {
	id := s.correlator.add(fn)
	frame, err := protocol.EncodeRequest(id, path, method, body)
	if err != nil {
		s.correlator.abandon(id)
		return fmt.Errorf("encode request: %w", err)
	}
	if err := t.Send(frame); err != nil {
		s.correlator.abandon(id)
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

// bootstrap requests the current value of an exact path and routes the Result
// to the observation's handler.
func (s *Session) bootstrap(t Transport, path string, h Handler) {
	if err := s.send(t, path, "GET", nil, completion(h)); err != nil {
		s.log.Warn("bootstrap request failed", zap.String("path", path), zap.Error(err))
	}
}

// handleOpen runs when the transport reports open: flip the state flags and
// send the handshake frame as the very first outbound message.
func (s *Session) handleOpen(t Transport) {
	s.mu.Lock()
	s.connected = true
	s.connecting = false
	s.mu.Unlock()

	if err := t.Send(protocol.EncodeHandshake()); err != nil {
		s.log.Warn("handshake send failed", zap.Error(err))
		return
	}
	s.log.Debug("transport open, handshake sent")
}

// handleClose runs when the transport closes underneath us. A close while
// still connecting is a failed attempt; otherwise an established session went
// away.
func (s *Session) handleClose(err error) {
	s.mu.Lock()
	wasConnecting := s.connecting
	s.connecting = false
	s.connected = false
	s.mu.Unlock()

	if wasConnecting {
		s.log.Warn("connection attempt failed", zap.Error(err))
		return
	}
	s.log.Info("disconnected", zap.Error(err))
}

// route decodes one incoming frame and hands it to the component that owns
// its opcode. Malformed frames are logged and dropped with no effect on
// connection state.
func (s *Session) route(t Transport, data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		s.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch f.Op {
	case protocol.OpUpdate:
		path, res, err := f.Update()
		if err != nil {
			s.log.Warn("dropping malformed frame", zap.Error(err))
			return
		}
		for _, h := range s.registry.matching(path) {
			h(res)
		}

	case protocol.OpResponse:
		id, res, err := f.Response()
		if err != nil {
			s.log.Warn("dropping malformed frame", zap.Error(err))
			return
		}
		if !s.correlator.resolve(id, res) {
			s.log.Debug("response with no pending request", zap.Uint64("id", id))
		}

	case protocol.OpHandshakeComplete:
		s.handleWelcome(t, f)

	default:
		s.log.Debug("ignoring frame", zap.Stringer("op", f.Op))
	}
}

// handleWelcome finishes the handshake: record the remote identity, kick off
// the fire-and-forget side effects and replay every registered observation.
func (s *Session) handleWelcome(t Transport, f *protocol.Frame) {
	version, name, token, err := f.Welcome()
	if err != nil {
		s.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.remote = RemoteInfo{Name: name, Version: version, NotificationToken: token}
	s.mu.Unlock()
	s.log.Info("session established",
		zap.String("remote", name), zap.String("version", version))

	// Side effects must not gate further routing.
	if s.config != nil {
		go func() {
			if err := s.config.RememberRemote(name); err != nil {
				s.log.Warn("persisting remote name failed", zap.Error(err))
			}
		}()
	}
	if s.notifier != nil && token != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.notifier.Subscribe(ctx, token, "push"); err != nil {
				s.log.Warn("notification subscribe failed", zap.Error(err))
			}
		}()
	}

	// Replay observations registered while disconnected (and any that
	// survived a reconnect).
	for _, o := range s.registry.snapshot() {
		if err := t.Send(protocol.EncodeSubscribe(o.matcher.Source())); err != nil {
			s.log.Warn("subscribe replay failed", zap.String("source", o.matcher.Source()), zap.Error(err))
			continue
		}
		if o.matcher.IsExact() {
			s.bootstrap(t, o.matcher.Source(), o.handler)
		}
	}
}
