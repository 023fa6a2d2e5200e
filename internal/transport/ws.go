package transport

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/peakwire/conduit/internal/relay"
)

const (
	defaultPingInterval = 10 * time.Second
	handshakeTimeout    = 10 * time.Second
	writeTimeout        = 5 * time.Second
	sendBuffer          = 32
)

// ErrClosed is returned by Send once the socket is no longer open
var ErrClosed = errors.New("transport: connection closed")

// Dialer opens websocket transports against a relay host. It implements
// relay.Dialer.
type Dialer struct {
	host         string
	scheme       string
	log          *zap.Logger
	clk          clock.Clock
	pingInterval time.Duration
}

// Option configures the Dialer
type Option func(*Dialer)

// WithLogger sets the transport logger
func WithLogger(log *zap.Logger) Option {
	return func(d *Dialer) {
		if log != nil {
			d.log = log
		}
	}
}

// WithClock substitutes the clock driving the ping ticker
func WithClock(clk clock.Clock) Option {
	return func(d *Dialer) { d.clk = clk }
}

// WithPingInterval sets how often the transport samples round-trip time
func WithPingInterval(interval time.Duration) Option {
	return func(d *Dialer) {
		if interval > 0 {
			d.pingInterval = interval
		}
	}
}

// WithInsecure dials ws:// instead of wss://, for local hosts and tests
func WithInsecure() Option {
	return func(d *Dialer) { d.scheme = "ws" }
}

// NewDialer creates a Dialer for the given relay host (host or host:port)
func NewDialer(host string, opts ...Option) *Dialer {
	d := &Dialer{
		host:         host,
		scheme:       "wss",
		log:          zap.NewNop(),
		clk:          clock.New(),
		pingInterval: defaultPingInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial returns a transport bound to the pairing code. The websocket dial
// itself happens asynchronously; the transport starts in the connecting state
// and delivers an open or close event once the outcome is known. Delivery is
// held back until the caller has installed all three handlers.
func (d *Dialer) Dial(code string) (relay.Transport, error) {
	if d.host == "" {
		return nil, errors.New("transport: relay host is empty")
	}
	u := url.URL{
		Scheme:   d.scheme,
		Host:     d.host,
		Path:     "/conduit",
		RawQuery: url.Values{"code": {code}}.Encode(),
	}

	t := &ws{
		log:          d.log,
		clk:          d.clk,
		pingInterval: d.pingInterval,
		state:        relay.StateConnecting,
		rtt:          -1,
		ready:        make(chan struct{}),
		sendCh:       make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		onOpen:       func() {},
		onMessage:    func([]byte) {},
		onClose:      func(error) {},
	}
	go t.run(u.String())
	return t, nil
}

// ws is one websocket connection: a read pump delivering frames in order and
// a single writer goroutine draining sendCh, so send order is preserved.
type ws struct {
	log          *zap.Logger
	clk          clock.Clock
	pingInterval time.Duration

	mu        sync.Mutex
	onOpen    func()
	onMessage func([]byte)
	onClose   func(error)
	state     relay.State
	rtt       time.Duration
	pingSent  time.Time
	conn      *websocket.Conn

	readyOnce sync.Once
	ready     chan struct{}
	doneOnce  sync.Once
	done      chan struct{}
	sendCh    chan []byte
}

func (t *ws) OnOpen(fn func()) {
	t.mu.Lock()
	t.onOpen = fn
	t.mu.Unlock()
}

func (t *ws) OnMessage(fn func(data []byte)) {
	t.mu.Lock()
	t.onMessage = fn
	t.mu.Unlock()
}

// OnClose completes the handler set; installing it releases event delivery.
// The session installs handlers in open/message/close order and so relies on
// this being last.
func (t *ws) OnClose(fn func(err error)) {
	t.mu.Lock()
	t.onClose = fn
	t.mu.Unlock()
	t.readyOnce.Do(func() { close(t.ready) })
}

func (t *ws) State() relay.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *ws) Ping() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rtt
}

func (t *ws) Send(data []byte) error {
	t.mu.Lock()
	open := t.state == relay.StateOpen
	t.mu.Unlock()
	if !open {
		return ErrClosed
	}
	select {
	case t.sendCh <- data:
		return nil
	case <-t.done:
		return ErrClosed
	}
}

// Close tears the connection down without delivering a close event to
// whoever called it; by then the session has detached its handlers anyway.
func (t *ws) Close() error {
	t.mu.Lock()
	if t.state != relay.StateDisconnected {
		t.state = relay.StateClosing
	}
	conn := t.conn
	t.mu.Unlock()

	t.doneOnce.Do(func() { close(t.done) })
	if conn != nil {
		deadline := time.Now().Add(writeTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}

	t.mu.Lock()
	t.state = relay.StateDisconnected
	t.mu.Unlock()
	return nil
}

func (t *ws) run(urlStr string) {
	// Hold all delivery until the handler set is complete.
	<-t.ready

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(urlStr, nil)
	if err != nil {
		t.finish(fmt.Errorf("dial %s: %w", urlStr, err))
		return
	}

	conn.SetPongHandler(func(string) error {
		t.mu.Lock()
		if !t.pingSent.IsZero() {
			t.rtt = t.clk.Since(t.pingSent)
		}
		t.mu.Unlock()
		return nil
	})

	t.mu.Lock()
	t.conn = conn
	t.state = relay.StateOpen
	open := t.onOpen
	t.mu.Unlock()

	select {
	case <-t.done:
		// Closed while dialing.
		_ = conn.Close()
		return
	default:
	}

	go t.writePump(conn)
	open()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.finish(err)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		t.mu.Lock()
		handler := t.onMessage
		t.mu.Unlock()
		handler(data)
	}
}

// writePump is the only goroutine writing to the connection
func (t *ws) writePump(conn *websocket.Conn) {
	ticker := t.clk.Ticker(t.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-t.sendCh:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				t.log.Debug("write failed", zap.Error(err))
				t.finish(err)
				return
			}
		case <-ticker.C:
			t.mu.Lock()
			t.pingSent = t.clk.Now()
			t.mu.Unlock()
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				t.log.Debug("ping failed", zap.Error(err))
			}
		case <-t.done:
			return
		}
	}
}

// finish delivers the close event exactly once for failures originating on
// the socket itself.
func (t *ws) finish(err error) {
	var fire func(error)
	t.doneOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		t.state = relay.StateDisconnected
		if t.conn != nil {
			_ = t.conn.Close()
		}
		fire = t.onClose
		t.mu.Unlock()
	})
	if fire != nil {
		t.log.Debug("transport closed", zap.Error(err))
		fire(err)
	}
}
