package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSubscribe(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	err := c.Subscribe(context.Background(), "tok-1", "push")
	require.NoError(t, err)

	assert.Equal(t, "/v1/subscriptions", gotPath)
	assert.Equal(t, map[string]string{"token": "tok-1", "type": "push"}, gotBody)
}

func TestClientUnsubscribe(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	err := c.Unsubscribe(context.Background(), "ABC123", "push")
	require.NoError(t, err)

	assert.Equal(t, "/v1/subscriptions/delete", gotPath)
	assert.Equal(t, map[string]string{"code": "ABC123", "type": "push"}, gotBody)
}

func TestClientErrors(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer ts.Close()

		err := NewClient(ts.URL).Subscribe(context.Background(), "tok", "push")
		assert.Error(t, err)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		err := NewClient("http://127.0.0.1:1").Subscribe(context.Background(), "tok", "push")
		assert.Error(t, err)
	})
}
