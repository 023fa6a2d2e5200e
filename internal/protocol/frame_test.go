package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("rejects non-array frames", func(t *testing.T) {
		_, err := Decode([]byte(`{"op":5}`))
		assert.Error(t, err)

		_, err = Decode([]byte(`not json at all`))
		assert.Error(t, err)
	})

	t.Run("rejects empty array", func(t *testing.T) {
		_, err := Decode([]byte(`[]`))
		assert.Error(t, err)
	})

	t.Run("rejects non-integer opcode", func(t *testing.T) {
		_, err := Decode([]byte(`["update","/a",200,{}]`))
		assert.Error(t, err)
	})

	t.Run("decodes opcode and keeps fields", func(t *testing.T) {
		f, err := Decode([]byte(`[5,"/lol-gameflow/v1/session",200,{"phase":"Lobby"}]`))
		require.NoError(t, err)
		assert.Equal(t, OpUpdate, f.Op)
	})
}

func TestFrameWelcome(t *testing.T) {
	f, err := Decode([]byte(`[2,"9.3.1","Summoner's PC","tok-123"]`))
	require.NoError(t, err)

	version, name, token, err := f.Welcome()
	require.NoError(t, err)
	assert.Equal(t, "9.3.1", version)
	assert.Equal(t, "Summoner's PC", name)
	assert.Equal(t, "tok-123", token)

	t.Run("wrong opcode", func(t *testing.T) {
		f, err := Decode([]byte(`[5,"/a",200,{}]`))
		require.NoError(t, err)
		_, _, _, err = f.Welcome()
		assert.Error(t, err)
	})

	t.Run("too few fields", func(t *testing.T) {
		f, err := Decode([]byte(`[2,"9.3.1"]`))
		require.NoError(t, err)
		_, _, _, err = f.Welcome()
		assert.Error(t, err)
	})
}

func TestFrameUpdate(t *testing.T) {
	f, err := Decode([]byte(`[5,"/lol-chat/v1/me",200,{"name":"bob"}]`))
	require.NoError(t, err)

	path, res, err := f.Update()
	require.NoError(t, err)
	assert.Equal(t, "/lol-chat/v1/me", path)
	assert.Equal(t, 200, res.Status)
	assert.JSONEq(t, `{"name":"bob"}`, string(res.Content))
	assert.True(t, res.OK())
}

func TestFrameResponse(t *testing.T) {
	f, err := Decode([]byte(`[7,0,200,{"a":1}]`))
	require.NoError(t, err)

	id, res, err := f.Response()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
	assert.Equal(t, 200, res.Status)
	assert.JSONEq(t, `{"a":1}`, string(res.Content))

	t.Run("non-2xx is still a valid result", func(t *testing.T) {
		f, err := Decode([]byte(`[7,3,404,null]`))
		require.NoError(t, err)
		_, res, err := f.Response()
		require.NoError(t, err)
		assert.Equal(t, 404, res.Status)
		assert.False(t, res.OK())
	})
}

func TestEncode(t *testing.T) {
	t.Run("handshake has no payload", func(t *testing.T) {
		assert.JSONEq(t, `[1]`, string(EncodeHandshake()))
	})

	t.Run("subscribe carries source text", func(t *testing.T) {
		assert.JSONEq(t, `[3,"/lol-gameflow/v1/session"]`, string(EncodeSubscribe("/lol-gameflow/v1/session")))
	})

	t.Run("unsubscribe", func(t *testing.T) {
		assert.JSONEq(t, `[4,"/lol-chat/v1/me"]`, string(EncodeUnsubscribe("/lol-chat/v1/me")))
	})

	t.Run("request omits nil body", func(t *testing.T) {
		b, err := EncodeRequest(7, "/x", "GET", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `[6,7,"/x","GET"]`, string(b))
	})

	t.Run("request carries body", func(t *testing.T) {
		b, err := EncodeRequest(8, "/x", "POST", map[string]int{"a": 1})
		require.NoError(t, err)
		assert.JSONEq(t, `[6,8,"/x","POST",{"a":1}]`, string(b))
	})
}
