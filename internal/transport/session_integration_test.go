package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakwire/conduit/internal/protocol"
	"github.com/peakwire/conduit/internal/relay"
)

// scriptedRelay speaks just enough of the relay protocol for a full session:
// answers the handshake, echoes requests and pushes one update per subscribe.
func scriptedRelay(t *testing.T, codes chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case codes <- r.URL.Query().Get("code"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var elems []json.RawMessage
			if err := json.Unmarshal(data, &elems); err != nil || len(elems) == 0 {
				continue
			}
			var op int
			_ = json.Unmarshal(elems[0], &op)

			switch protocol.Opcode(op) {
			case protocol.OpHandshake:
				_ = conn.WriteMessage(websocket.TextMessage,
					[]byte(`[2,"1.0","stub host","tok-1"]`))
			case protocol.OpSubscribe:
				var source string
				_ = json.Unmarshal(elems[1], &source)
				if !strings.HasPrefix(source, "/") {
					continue // patterns get no synthetic update
				}
				push, _ := json.Marshal([]any{protocol.OpUpdate, source, 200, map[string]any{"pushed": true}})
				_ = conn.WriteMessage(websocket.TextMessage, push)
			case protocol.OpRequest:
				var id uint64
				var path string
				_ = json.Unmarshal(elems[1], &id)
				_ = json.Unmarshal(elems[2], &path)
				reply, _ := json.Marshal([]any{protocol.OpResponse, id, 200, map[string]any{"path": path}})
				_ = conn.WriteMessage(websocket.TextMessage, reply)
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestSessionOverWebsocket(t *testing.T) {
	codes := make(chan string, 1)
	ts := scriptedRelay(t, codes)

	d := NewDialer(strings.TrimPrefix(ts.URL, "http://"), WithInsecure())
	session := relay.NewSession(d)
	defer session.Close()

	results := make(chan protocol.Result, 8)
	session.Observe(relay.Exact("/lol-gameflow/v1/session"), func(res protocol.Result) {
		results <- res
	})

	session.Connect("ABC123")

	select {
	case code := <-codes:
		assert.Equal(t, "ABC123", code, "pairing code travels in the dial URL")
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the dial")
	}

	require.Eventually(t, session.Connected, 5*time.Second, 10*time.Millisecond)

	// Handshake replay: a bootstrap result for the exact path plus the
	// pushed update triggered by the subscribe.
	for i := 0; i < 2; i++ {
		select {
		case res := <-results:
			assert.Equal(t, 200, res.Status)
		case <-time.After(5 * time.Second):
			t.Fatal("observation handler never fired")
		}
	}

	remote := session.Remote()
	assert.Equal(t, "stub host", remote.Name)
	assert.Equal(t, "1.0", remote.Version)
	assert.Equal(t, "tok-1", remote.NotificationToken)

	t.Run("request round-trip", func(t *testing.T) {
		ch, err := session.Do("/x", "POST", map[string]int{"n": 1})
		require.NoError(t, err)
		select {
		case res := <-ch:
			assert.Equal(t, 200, res.Status)
			assert.JSONEq(t, `{"path":"/x"}`, string(res.Content))
		case <-time.After(5 * time.Second):
			t.Fatal("request never completed")
		}
	})

	t.Run("close ends the session", func(t *testing.T) {
		session.Close()
		assert.False(t, session.Connected())
		_, err := session.Request("/x")
		assert.ErrorIs(t, err, relay.ErrNotConnected)
	})
}
